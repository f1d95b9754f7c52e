package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMessenger struct{}

func (nopMessenger) Notify(domain.UserID, string) {}

type zeroLedger struct{}

func (zeroLedger) Balance(context.Context, domain.UserID) (int64, error) { return 1 << 20, nil }
func (zeroLedger) Adjust(context.Context, domain.UserID, int64) (int64, error) {
	return 0, nil
}

func newTestEngine(t *testing.T) (*Engine, *quartz.Mock) {
	clk := quartz.NewMock(t)
	return NewEngine(DefaultRules(), zeroLedger{}, nopMessenger{}, WithClock(clk)), clk
}

func TestBetAfterDeadlineIsRejected(t *testing.T) {
	e, clk := newTestEngine(t)
	room := NewRoom("100_room_1", 100)
	for _, u := range []domain.UserID{1, 2, 3} {
		_, err := e.Join(room, domain.Real(u))
		require.NoError(t, err)
	}

	room.mu.Lock()
	room.deadline = clk.Now().Add(-time.Millisecond)
	room.mu.Unlock()

	err := e.PlaceBet(context.Background(), room, domain.Real(1), domain.SideGreen)
	assert.ErrorIs(t, err, domain.ErrGameInProgress)
}

func TestSettlingRoomRejectsJoinsAndBets(t *testing.T) {
	e, _ := newTestEngine(t)
	room := NewRoom("100_room_1", 100)
	_, err := e.Join(room, domain.Real(1))
	require.NoError(t, err)

	room.mu.Lock()
	room.setState(domain.StateSettling)
	room.mu.Unlock()

	_, err = e.Join(room, domain.Real(2))
	assert.ErrorIs(t, err, domain.ErrGameInProgress)
	err = e.PlaceBet(context.Background(), room, domain.Real(1), domain.SideRed)
	assert.ErrorIs(t, err, domain.ErrGameInProgress)
	assert.False(t, room.Available())
	// leaving is always allowed
	assert.NoError(t, e.Leave(room, domain.Real(1)))
}

func TestStaleTimerCallbacksAreIgnored(t *testing.T) {
	e, _ := newTestEngine(t)
	room := NewRoom("100_room_1", 100)
	for _, u := range []domain.UserID{1, 2, 3} {
		_, err := e.Join(room, domain.Real(u))
		require.NoError(t, err)
	}
	room.mu.Lock()
	staleRound := room.round
	room.mu.Unlock()

	_, ok := e.Settle(context.Background(), room)
	require.True(t, ok)

	// next round starts in the same slot
	for _, u := range []domain.UserID{4, 5, 6} {
		_, err := e.Join(room, domain.Real(u))
		require.NoError(t, err)
	}
	require.Equal(t, domain.StateTimerRunning, room.State())

	e.settleRound(room, staleRound)
	e.graceExpired(room, staleRound)
	e.remind(room, staleRound, time.Second)

	assert.Equal(t, domain.StateTimerRunning, room.State())
	assert.Len(t, room.Members(), 3)
}

func TestResetClearsTimers(t *testing.T) {
	e, _ := newTestEngine(t)
	room := NewRoom("100_room_1", 100)
	for _, u := range []domain.UserID{1, 2, 3} {
		_, err := e.Join(room, domain.Real(u))
		require.NoError(t, err)
	}
	_, ok := e.Settle(context.Background(), room)
	require.True(t, ok)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Nil(t, room.grace)
	assert.Nil(t, room.window)
	assert.Empty(t, room.countdown)
	assert.True(t, room.deadline.IsZero())
	assert.Equal(t, domain.StateOpen, room.state)
}

type deadlineLedger struct {
	zeroLedger
	mu        sync.Mutex
	deadlines []time.Time
}

func (l *deadlineLedger) Adjust(ctx context.Context, _ domain.UserID, delta int64) (int64, error) {
	if delta > 0 {
		d, ok := ctx.Deadline()
		l.mu.Lock()
		if ok {
			l.deadlines = append(l.deadlines, d)
		}
		l.mu.Unlock()
	}
	return 0, nil
}

func TestTimerSettlementUsesOpTimeout(t *testing.T) {
	l := &deadlineLedger{}
	e := NewEngine(DefaultRules(), l, nopMessenger{}, WithClock(quartz.NewMock(t)), WithOpTimeout(3*time.Second))
	room := NewRoom("100_room_1", 100)
	sides := map[domain.UserID]domain.Side{1: domain.SideGreen, 2: domain.SideRed, 3: domain.SideRed}
	for _, u := range []domain.UserID{1, 2, 3} {
		_, err := e.Join(room, domain.Real(u))
		require.NoError(t, err)
	}
	for u, s := range sides {
		require.NoError(t, e.PlaceBet(context.Background(), room, domain.Real(u), s))
	}
	room.mu.Lock()
	round := room.round
	room.mu.Unlock()

	start := time.Now()
	e.settleRound(room, round)

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.deadlines, 1, "one winner paid")
	assert.WithinRange(t, l.deadlines[0], start.Add(3*time.Second), time.Now().Add(3*time.Second))
}
