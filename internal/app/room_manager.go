package app

import (
	"slices"
	"sync"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomRegistry keeps the rooms of every stake tier in creation order. Rooms
// are recycled after settlement and never removed.
type RoomRegistry struct {
	mu    sync.RWMutex
	tiers []domain.StakeTier
	rooms map[domain.StakeTier][]*core.Room
	byID  map[domain.RoomID]*core.Room
}

func NewRoomRegistry(tiers []domain.StakeTier) *RoomRegistry {
	r := &RoomRegistry{
		tiers: slices.Clone(tiers),
		rooms: make(map[domain.StakeTier][]*core.Room, len(tiers)),
		byID:  make(map[domain.RoomID]*core.Room),
	}
	slices.Sort(r.tiers)
	return r
}

func (r *RoomRegistry) Tiers() []domain.StakeTier {
	return slices.Clone(r.tiers)
}

func (r *RoomRegistry) known(tier domain.StakeTier) bool {
	_, ok := slices.BinarySearch(r.tiers, tier)
	return ok
}

// FindOrCreate returns the first room of tier that accepts joins, creating
// "{tier}_room_{n}" when none does.
func (r *RoomRegistry) FindOrCreate(tier domain.StakeTier) (*core.Room, error) {
	if !r.known(tier) {
		return nil, domain.ErrInvalidAmount
	}

	r.mu.RLock()
	for _, room := range r.rooms[tier] {
		if room.Available() {
			r.mu.RUnlock()
			return room, nil
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms[tier] {
		if room.Available() {
			return room, nil
		}
	}
	id := domain.NewRoomID(tier, len(r.rooms[tier])+1)
	room := core.NewRoom(id, tier)
	r.rooms[tier] = append(r.rooms[tier], room)
	r.byID[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Int64("tier", int64(tier)).Msg("created room")
	return room, nil
}

// Get resolves a room by id.
func (r *RoomRegistry) Get(id domain.RoomID) (*core.Room, error) {
	if _, ok := id.Tier(); !ok {
		return nil, domain.ErrRoomNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// List returns snapshots of the rooms of tier, or of every tier when tier is
// zero.
func (r *RoomRegistry) List(tier domain.StakeTier) ([]domain.RoomInfo, error) {
	if tier != 0 && !r.known(tier) {
		return nil, domain.ErrInvalidAmount
	}
	r.mu.RLock()
	var rooms []*core.Room
	for _, t := range r.tiers {
		if tier == 0 || t == tier {
			rooms = append(rooms, r.rooms[t]...)
		}
	}
	r.mu.RUnlock()

	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Info())
	}
	return out, nil
}
