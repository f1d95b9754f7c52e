package core

import (
	"time"

	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

// The helpers below expect r.mu to be held.

func (r *Room) setState(s domain.LifecycleState) {
	r.state = s
	r.published.Store(int32(s))
}

func (r *Room) indexOf(p domain.Participant) int {
	for i, m := range r.members {
		if m == p {
			return i
		}
	}
	return -1
}

func (r *Room) addMember(p domain.Participant) {
	r.members = append(r.members, p)
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("participant", p.String()).Msg("member added")
}

func (r *Room) removeMember(p domain.Participant) bool {
	delete(r.sides, p)
	i := r.indexOf(p)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("participant", p.String()).Msg("member removed")
	return true
}

func (r *Room) countSide(side domain.Side) int {
	n := 0
	for _, s := range r.sides {
		if s == side {
			n++
		}
	}
	return n
}

// bettors lists the participants committed to side, in join order.
func (r *Room) bettors(side domain.Side) []domain.Participant {
	var out []domain.Participant
	for _, m := range r.members {
		if s, ok := r.sides[m]; ok && s == side {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) stopGrace() {
	if r.grace != nil {
		r.grace.Stop()
		r.grace = nil
	}
}

func (r *Room) stopTimers() {
	r.stopGrace()
	if r.window != nil {
		r.window.Stop()
		r.window = nil
	}
	for _, t := range r.countdown {
		t.Stop()
	}
	r.countdown = nil
}

// reset recycles the slot: timers are stopped, the round counter moves on so
// late callbacks of the previous round become no-ops, and membership is
// cleared. It returns the former members.
func (r *Room) reset() []domain.Participant {
	r.setState(domain.StateClosed)
	r.stopTimers()
	r.round++
	former := r.members
	r.members = nil
	r.sides = make(map[domain.Participant]domain.Side)
	r.deadline = time.Time{}
	r.setState(domain.StateOpen)
	return former
}
