package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	RoomID    string
	StakeTier int64
)

func NewRoomID(tier StakeTier, n int) RoomID {
	return RoomID(fmt.Sprintf("%d_room_%d", tier, n))
}

// Tier parses the stake tier prefix of a room id.
func (id RoomID) Tier() (StakeTier, bool) {
	prefix, _, ok := strings.Cut(string(id), "_room_")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return StakeTier(v), true
}

type Side string

const (
	SideGreen Side = "green"
	SideRed   Side = "red"
)

func ParseSide(raw string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(raw))) {
	case SideGreen:
		return SideGreen, nil
	case SideRed:
		return SideRed, nil
	}
	return "", ErrInvalidSide
}

func (s Side) Title() string {
	switch s {
	case SideGreen:
		return "Green"
	case SideRed:
		return "Red"
	}
	return string(s)
}

type LifecycleState int

const (
	StateOpen LifecycleState = iota
	StateAwaitingQuorum
	StateTimerRunning
	StateSettling
	StateClosed
)

func (s LifecycleState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAwaitingQuorum:
		return "awaiting_quorum"
	case StateTimerRunning:
		return "timer_running"
	case StateSettling:
		return "settling"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Available reports whether the registry may hand the room to new joiners.
func (s LifecycleState) Available() bool {
	return s == StateOpen || s == StateAwaitingQuorum
}

// RoomInfo is a read-only view of a room for APIs.
type RoomInfo struct {
	ID       RoomID    `json:"id"`
	Stake    StakeTier `json:"stake"`
	State    string    `json:"state"`
	Members  int       `json:"members"`
	Green    int       `json:"green"`
	Red      int       `json:"red"`
	Deadline time.Time `json:"deadline,omitzero"`
}
