package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/domain"
)

// Room is one recycled game slot of a stake tier. Every mutation happens under
// mu and runs to completion, ledger calls included, so operations on the same
// room are totally ordered. The lifecycle state is mirrored into an atomic so
// the registry can scan rooms without waiting on a busy one.
type Room struct {
	id   domain.RoomID
	tier domain.StakeTier

	mu        sync.Mutex
	state     domain.LifecycleState
	published atomic.Int32
	members   []domain.Participant
	sides     map[domain.Participant]domain.Side
	deadline  time.Time
	round     uint64

	grace     *quartz.Timer
	window    *quartz.Timer
	countdown []*quartz.Timer
}

func NewRoom(id domain.RoomID, tier domain.StakeTier) *Room {
	r := &Room{
		id:    id,
		tier:  tier,
		sides: make(map[domain.Participant]domain.Side),
	}
	r.setState(domain.StateOpen)
	return r
}

func (r *Room) ID() domain.RoomID { return r.id }
func (r *Room) Tier() domain.StakeTier { return r.tier }
func (r *Room) State() domain.LifecycleState { return domain.LifecycleState(r.published.Load()) }

// Available reports whether the registry may place new joiners here.
func (r *Room) Available() bool { return r.State().Available() }

func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomInfo{
		ID:       r.id,
		Stake:    r.tier,
		State:    r.state.String(),
		Members:  len(r.members),
		Green:    r.countSide(domain.SideGreen),
		Red:      r.countSide(domain.SideRed),
		Deadline: r.deadline,
	}
}

// Members returns a copy of the membership in join order.
func (r *Room) Members() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Participant, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) HasMember(p domain.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(p) >= 0
}

func (r *Room) SideOf(p domain.Participant) (domain.Side, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sides[p]
	return s, ok
}

func (r *Room) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}
