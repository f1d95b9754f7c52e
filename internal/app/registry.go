package app

import (
	"sync"

	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence tracks which room every user sits in. A user holds at most one
// seat; the engine releases it on leave and on room reset.
type Presence struct {
	mu    sync.Mutex
	seats map[domain.UserID]domain.RoomID
}

func NewPresence() *Presence {
	return &Presence{seats: make(map[domain.UserID]domain.RoomID)}
}

// Claim seats user in room. It fails with ErrAlreadyJoined when the user
// already holds a seat anywhere.
func (p *Presence) Claim(user domain.UserID, room domain.RoomID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.seats[user]; ok {
		log.Debug().Str("module", "app.presence").Str("user", user.String()).Str("room", string(cur)).Msg("already seated")
		return domain.ErrAlreadyJoined
	}
	p.seats[user] = room
	return nil
}

// Released frees the seat if it still points at room.
func (p *Presence) Released(user domain.UserID, room domain.RoomID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seats[user] == room {
		delete(p.seats, user)
	}
}

func (p *Presence) RoomOf(user domain.UserID) (domain.RoomID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.seats[user]
	return id, ok
}

func (p *Presence) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seats)
}
