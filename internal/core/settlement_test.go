package core_test

import (
	"context"
	"testing"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSettlement(t *testing.T) {
	tests := []struct {
		name       string
		green, red int
		stake      domain.StakeTier
		want       core.Settlement
	}{
		{
			name: "red minority takes the pool", green: 2, red: 1, stake: 100,
			want: core.Settlement{Outcome: core.OutcomeRed, Stake: 100, Green: 2, Red: 1, Total: 300, Rake: 60, Pool: 240, Reward: 240},
		},
		{
			name: "green minority splits the pool", green: 1, red: 3, stake: 300,
			want: core.Settlement{Outcome: core.OutcomeGreen, Stake: 300, Green: 1, Red: 3, Total: 1200, Rake: 240, Pool: 960, Reward: 960},
		},
		{
			name: "reward rounds down", green: 3, red: 5, stake: 100,
			want: core.Settlement{Outcome: core.OutcomeGreen, Stake: 100, Green: 3, Red: 5, Total: 800, Rake: 160, Pool: 640, Reward: 213},
		},
		{
			name: "equal sides tie", green: 2, red: 2, stake: 500,
			want: core.Settlement{Outcome: core.OutcomeTie, Stake: 500, Green: 2, Red: 2, Total: 2000, Rake: 400, Pool: 1600},
		},
		{
			name: "nobody bet", green: 0, red: 0, stake: 1000,
			want: core.Settlement{Outcome: core.OutcomeTie, Stake: 1000},
		},
		{
			name: "empty side wins against a lone bettor", green: 1, red: 0, stake: 100,
			want: core.Settlement{Outcome: core.OutcomeRed, Stake: 100, Green: 1, Red: 0, Total: 100, Rake: 20, Pool: 80, Reward: 80},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ComputeSettlement(tt.green, tt.red, tt.stake, 20)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSettlementBounds(t *testing.T) {
	for _, stake := range []domain.StakeTier{100, 300, 500, 1000} {
		for a := 1; a <= 9; a++ {
			for b := 1; b <= 9; b++ {
				if a == b {
					continue
				}
				s := core.ComputeSettlement(a, b, stake, 20)
				total := int64(a+b) * int64(stake)
				pool := total * 8 / 10
				require.Equal(t, pool, s.Pool)
				require.Equal(t, pool/int64(min(a, b)), s.Reward)
				require.LessOrEqual(t, s.Reward*int64(min(a, b)), pool)
			}
		}
	}
}

func TestSettleMinorityWins(t *testing.T) {
	h := newHarness(t)
	room := core.NewRoom("100_room_1", 100)
	h.fund(t, 1000, 1, 2, 3)
	h.join(t, room, 1, 2, 3)
	require.Equal(t, domain.StateTimerRunning, room.State())

	h.bet(t, room, 1, domain.SideGreen)
	h.bet(t, room, 2, domain.SideGreen)
	h.bet(t, room, 3, domain.SideRed)

	s, ok := h.engine.Settle(context.Background(), room)
	require.True(t, ok)
	assert.Equal(t, core.OutcomeRed, s.Outcome)
	assert.Equal(t, int64(60), s.Rake)
	assert.Equal(t, int64(240), s.Reward)

	assert.Equal(t, int64(900), h.balance(t, 1))
	assert.Equal(t, int64(900), h.balance(t, 2))
	assert.Equal(t, int64(1140), h.balance(t, 3))

	for _, u := range []domain.UserID{1, 2, 3} {
		assert.True(t, h.msgs.Contains(u, "[100_room_1] Team Red wins. Reward: 240 coins each. Winners: 1"))
		assert.True(t, h.msgs.Contains(u, "You left room [100_room_1]."))
	}
	assert.Equal(t, domain.StateOpen, room.State())
	assert.Empty(t, room.Members())
	assert.ElementsMatch(t, []domain.UserID{1, 2, 3}, h.presence.Users())
}

func TestSettleTieRefundsEveryone(t *testing.T) {
	h := newHarness(t)
	room := core.NewRoom("500_room_1", 500)
	users := []domain.UserID{1, 2, 3, 4}
	h.fund(t, 700, users...)
	h.join(t, room, users...)

	h.bet(t, room, 1, domain.SideGreen)
	h.bet(t, room, 2, domain.SideGreen)
	h.bet(t, room, 3, domain.SideRed)
	h.bet(t, room, 4, domain.SideRed)
	for _, u := range users {
		require.Equal(t, int64(200), h.balance(t, u))
	}

	s, ok := h.engine.Settle(context.Background(), room)
	require.True(t, ok)
	assert.Equal(t, core.OutcomeTie, s.Outcome)
	for _, u := range users {
		assert.Equal(t, int64(700), h.balance(t, u))
		assert.True(t, h.msgs.Contains(u, "Tie! Stakes returned."))
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	room := core.NewRoom("100_room_1", 100)
	h.fund(t, 100, 1, 2, 3)
	h.join(t, room, 1, 2, 3)
	h.bet(t, room, 1, domain.SideGreen)
	h.bet(t, room, 2, domain.SideRed)
	h.bet(t, room, 3, domain.SideRed)

	_, ok := h.engine.Settle(context.Background(), room)
	require.True(t, ok)
	require.Equal(t, int64(240), h.balance(t, 1))

	_, ok = h.engine.Settle(context.Background(), room)
	assert.False(t, ok)
	assert.Equal(t, int64(240), h.balance(t, 1))
	assert.Equal(t, int64(0), h.balance(t, 2))
}

func TestSettleSyntheticWinnersStillShareThePool(t *testing.T) {
	h := newHarness(t)
	room := core.NewRoom("100_room_1", 100)
	h.fund(t, 100, 1, 2)
	h.join(t, room, 1, 2)
	_, err := h.engine.Join(room, domain.Synthetic("filler-x"))
	require.NoError(t, err)

	h.bet(t, room, 1, domain.SideGreen)
	h.bet(t, room, 2, domain.SideGreen)
	require.NoError(t, h.engine.PlaceBet(context.Background(), room, domain.Synthetic("filler-x"), domain.SideRed))

	s, ok := h.engine.Settle(context.Background(), room)
	require.True(t, ok)
	assert.Equal(t, core.OutcomeRed, s.Outcome)
	assert.Equal(t, int64(0), h.balance(t, 1))
	assert.Equal(t, int64(0), h.balance(t, 2))
	assert.True(t, h.msgs.Contains(1, "Team Red wins. Reward: 240 coins each. Winners: 1"))
}

func TestSettleContinuesAfterFailedCredit(t *testing.T) {
	h := newHarness(t)
	flaky := &flakyLedger{BalanceLedger: h.ledger, failCredits: map[domain.UserID]bool{1: true}}
	h.engine = core.NewEngine(core.DefaultRules(), flaky, h.msgs, core.WithClock(h.clock))

	room := core.NewRoom("100_room_1", 100)
	users := []domain.UserID{1, 2, 3, 4, 5}
	h.fund(t, 100, users...)
	h.join(t, room, users...)
	h.bet(t, room, 1, domain.SideGreen)
	h.bet(t, room, 2, domain.SideGreen)
	h.bet(t, room, 3, domain.SideRed)
	h.bet(t, room, 4, domain.SideRed)
	h.bet(t, room, 5, domain.SideRed)

	s, ok := h.engine.Settle(context.Background(), room)
	require.True(t, ok)
	require.Equal(t, int64(200), s.Reward)
	assert.Equal(t, int64(0), h.balance(t, 1))
	assert.Equal(t, int64(200), h.balance(t, 2))
	assert.Equal(t, domain.StateOpen, room.State())
}
