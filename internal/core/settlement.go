package core

import (
	"context"
	"fmt"

	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

type Outcome int

const (
	OutcomeTie Outcome = iota
	OutcomeGreen
	OutcomeRed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGreen:
		return "green"
	case OutcomeRed:
		return "red"
	}
	return "tie"
}

// Settlement is the result of a closed betting window. Reward is the per
// winner credit and is zero on a tie, where every bettor gets Stake back.
type Settlement struct {
	Outcome Outcome
	Stake   int64
	Green   int
	Red     int
	Total   int64
	Rake    int64
	Pool    int64
	Reward  int64
}

// Winner returns the winning side, false on a tie.
func (s Settlement) Winner() (domain.Side, bool) {
	switch s.Outcome {
	case OutcomeGreen:
		return domain.SideGreen, true
	case OutcomeRed:
		return domain.SideRed, true
	}
	return "", false
}

// ComputeSettlement applies the minority-wins rule to a closed window with
// green and red committed participants.
func ComputeSettlement(green, red int, stake domain.StakeTier, rakePercent int64) Settlement {
	s := Settlement{
		Stake: int64(stake),
		Green: green,
		Red:   red,
	}
	s.Total = int64(green+red) * int64(stake)
	s.Rake = s.Total * rakePercent / 100
	s.Pool = s.Total - s.Rake

	var winners int
	switch {
	case green < red:
		s.Outcome, winners = OutcomeGreen, green
	case red < green:
		s.Outcome, winners = OutcomeRed, red
	default:
		s.Outcome = OutcomeTie
		return s
	}
	// An empty minority side still wins; the pool then has nobody to pay.
	s.Reward = s.Pool / int64(max(winners, 1))
	return s
}

// Settle closes the betting window of room and pays out. It is a no-op
// returning false unless the room is TimerRunning, so duplicate fires are
// harmless.
func (e *Engine) Settle(ctx context.Context, room *Room) (Settlement, bool) {
	room.mu.Lock()
	defer room.mu.Unlock()
	return e.settle(ctx, room)
}

func (e *Engine) settleRound(room *Room, round uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opTimeout)
	defer cancel()

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.round != round {
		return
	}
	room.window = nil
	e.settle(ctx, room)
}

func (e *Engine) settle(ctx context.Context, room *Room) (Settlement, bool) {
	if room.state != domain.StateTimerRunning {
		return Settlement{}, false
	}
	room.setState(domain.StateSettling)

	green := room.bettors(domain.SideGreen)
	red := room.bettors(domain.SideRed)
	s := ComputeSettlement(len(green), len(red), room.tier, e.rules.RakePercent)
	members := append([]domain.Participant(nil), room.members...)

	logger := log.With().Str("module", "core.settlement").Str("room", string(room.id)).Logger()

	switch s.Outcome {
	case OutcomeTie:
		for _, p := range append(green, red...) {
			if id, ok := p.RealID(); ok {
				e.credit(ctx, room, id, s.Stake)
			}
		}
		e.broadcast(members, fmt.Sprintf("[%s] Tie! Stakes returned.", room.id))
		logger.Info().Int("green", s.Green).Int("red", s.Red).Msg("round tied, stakes refunded")

	default:
		side, _ := s.Winner()
		winners := green
		if side == domain.SideRed {
			winners = red
		}
		realWinners := 0
		for _, p := range winners {
			if id, ok := p.RealID(); ok {
				realWinners++
				e.credit(ctx, room, id, s.Reward)
			}
		}
		shown := realWinners
		if shown == 0 {
			shown = 1
		}
		e.broadcast(members, fmt.Sprintf("[%s] Team %s wins. Reward: %d coins each. Winners: %d",
			room.id, side.Title(), s.Reward, shown))
		logger.Info().
			Str("winner", string(side)).
			Int("green", s.Green).
			Int("red", s.Red).
			Int64("total", s.Total).
			Int64("rake", s.Rake).
			Int64("reward", s.Reward).
			Int("real_winners", realWinners).
			Msg("round settled")
	}

	e.resetRoom(room)
	return s, true
}

// credit pays one participant. Failures are logged and never stop the
// remaining payouts.
func (e *Engine) credit(ctx context.Context, room *Room, user domain.UserID, amount int64) {
	if amount <= 0 {
		return
	}
	if _, err := e.ledger.Adjust(ctx, user, amount); err != nil {
		log.Error().Err(err).
			Str("module", "core.settlement").
			Str("room", string(room.id)).
			Str("user", user.String()).
			Int64("amount", amount).
			Msg("payout credit failed")
	}
}

func (e *Engine) resetRoom(room *Room) {
	former := room.reset()
	for _, id := range domain.RealIDs(former) {
		e.messenger.Notify(id, fmt.Sprintf("You left room [%s].", room.id))
		if e.presence != nil {
			e.presence.Released(id, room.id)
		}
	}
}
