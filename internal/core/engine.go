package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Rules are the fixed parameters of a round.
type Rules struct {
	Quorum        int
	GracePeriod   time.Duration
	BettingWindow time.Duration
	RakePercent   int64
	// Countdown lists the remaining-time checkpoints that trigger reminders.
	Countdown []time.Duration
}

func DefaultRules() Rules {
	return Rules{
		Quorum:        3,
		GracePeriod:   10 * time.Second,
		BettingWindow: 30 * time.Second,
		RakePercent:   20,
		Countdown:     []time.Duration{5 * time.Second, 4 * time.Second, 3 * time.Second, 2 * time.Second, time.Second},
	}
}

// Engine drives rooms through their lifecycle: membership, bets, the quorum
// grace timer, the betting window and settlement.
type Engine struct {
	rules     Rules
	ledger    BalanceLedger
	messenger Messenger
	presence  PresenceObserver
	clock     quartz.Clock
	opTimeout time.Duration
	fillerTag func() string

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Engine)

func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func WithPresence(p PresenceObserver) Option {
	return func(e *Engine) { e.presence = p }
}

func WithFillerTags(fn func() string) Option {
	return func(e *Engine) { e.fillerTag = fn }
}

// WithOpTimeout bounds the ledger calls made from timer callbacks. Zero keeps
// the default.
func WithOpTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.opTimeout = d
		}
	}
}

func NewEngine(rules Rules, ledger BalanceLedger, messenger Messenger, opts ...Option) *Engine {
	e := &Engine{
		rules:     rules,
		ledger:    ledger,
		messenger: messenger,
		clock:     quartz.NewReal(),
		opTimeout: 10 * time.Second,
		fillerTag: func() string { return "filler-" + uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return e
}

func (e *Engine) Rules() Rules { return e.rules }

// JoinResult tells the caller how the join landed. Late joins happen while the
// window is already running; Remaining is the time left to bet.
type JoinResult struct {
	Room      domain.RoomID
	State     domain.LifecycleState
	Late      bool
	Remaining time.Duration
}

func (e *Engine) Join(room *Room, p domain.Participant) (JoinResult, error) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.indexOf(p) >= 0 {
		return JoinResult{}, domain.ErrAlreadyJoined
	}
	switch room.state {
	case domain.StateSettling, domain.StateClosed:
		return JoinResult{}, domain.ErrGameInProgress
	}

	room.addMember(p)
	res := JoinResult{Room: room.id}
	id, isReal := p.RealID()
	if isReal {
		e.messenger.Notify(id, fmt.Sprintf("You entered room [%s]. Place your bet: green or red.", room.id))
	}

	if room.state == domain.StateTimerRunning {
		res.Late = true
		res.Remaining = max(room.deadline.Sub(e.clock.Now()), 0)
		res.State = room.state
		if isReal {
			e.messenger.Notify(id, fmt.Sprintf("[%s] Round in progress: %d s left to bet.", room.id, ceilSeconds(res.Remaining)))
		}
		return res, nil
	}

	e.applyQuorum(room)
	res.State = room.state
	if res.State == domain.StateTimerRunning {
		res.Remaining = e.rules.BettingWindow
	}
	return res, nil
}

// applyQuorum arms the betting window once quorum is reached, otherwise makes
// sure a single grace timer is pending.
func (e *Engine) applyQuorum(room *Room) {
	if room.window != nil {
		return
	}
	if len(room.members) >= e.rules.Quorum {
		e.armWindow(room)
		return
	}
	room.setState(domain.StateAwaitingQuorum)
	if room.grace != nil {
		return
	}
	round := room.round
	room.grace = e.clock.AfterFunc(e.rules.GracePeriod, func() { e.graceExpired(room, round) })
	e.broadcast(room.members, fmt.Sprintf("[%s] Waiting for other players. At least %d needed.", room.id, e.rules.Quorum))
	log.Debug().Str("module", "core.engine").Str("room", string(room.id)).Dur("grace", e.rules.GracePeriod).Msg("grace timer started")
}

func (e *Engine) graceExpired(room *Room, round uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.round != round {
		return
	}
	room.grace = nil
	e.fillQuorum(room)
}

// FillQuorum runs the grace-timer step right away: fillers are added up to
// quorum and the betting window is armed. It returns the number of fillers.
func (e *Engine) FillQuorum(room *Room) int {
	room.mu.Lock()
	defer room.mu.Unlock()
	return e.fillQuorum(room)
}

func (e *Engine) fillQuorum(room *Room) int {
	if room.state != domain.StateAwaitingQuorum {
		return 0
	}
	room.stopGrace()
	if len(room.members) == 0 {
		room.setState(domain.StateOpen)
		return 0
	}
	missing := e.rules.Quorum - len(room.members)
	for range missing {
		p := domain.Synthetic(e.fillerTag())
		room.addMember(p)
		room.sides[p] = e.randomSide()
	}
	if missing > 0 {
		log.Info().Str("module", "core.engine").Str("room", string(room.id)).Int("fillers", missing).Msg("quorum filled")
	}
	e.armWindow(room)
	return max(missing, 0)
}

func (e *Engine) randomSide() domain.Side {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	if e.rng.IntN(2) == 0 {
		return domain.SideGreen
	}
	return domain.SideRed
}

func (e *Engine) armWindow(room *Room) {
	room.stopGrace()
	window := e.rules.BettingWindow
	room.setState(domain.StateTimerRunning)
	room.deadline = e.clock.Now().Add(window)

	round := room.round
	room.window = e.clock.AfterFunc(window, func() { e.settleRound(room, round) })
	for _, left := range e.rules.Countdown {
		if left <= 0 || left >= window {
			continue
		}
		room.countdown = append(room.countdown, e.clock.AfterFunc(window-left, func() { e.remind(room, round, left) }))
	}

	e.broadcast(room.members, fmt.Sprintf("[%s] Timer: %d s until betting closes!", room.id, ceilSeconds(window)))
	log.Info().Str("module", "core.engine").Str("room", string(room.id)).Int("members", len(room.members)).Time("deadline", room.deadline).Msg("betting window armed")
}

func (e *Engine) remind(room *Room, round uint64, left time.Duration) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.round != round || room.state != domain.StateTimerRunning {
		return
	}
	e.broadcast(room.members, fmt.Sprintf("[%s] %d s left!", room.id, ceilSeconds(left)))
}

// PlaceBet commits p to side. Real participants are debited one stake before
// the side is recorded.
func (e *Engine) PlaceBet(ctx context.Context, room *Room, p domain.Participant, side domain.Side) error {
	if side != domain.SideGreen && side != domain.SideRed {
		return domain.ErrInvalidSide
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.indexOf(p) < 0 {
		return domain.ErrNotInRoom
	}
	switch room.state {
	case domain.StateSettling, domain.StateClosed:
		return domain.ErrGameInProgress
	case domain.StateTimerRunning:
		if !e.clock.Now().Before(room.deadline) {
			return domain.ErrGameInProgress
		}
	}
	if _, ok := room.sides[p]; ok {
		return domain.ErrAlreadyCommitted
	}

	id, isReal := p.RealID()
	if isReal {
		stake := int64(room.tier)
		balance, err := e.ledger.Balance(ctx, id)
		if err != nil {
			return err
		}
		if balance < stake {
			return domain.ErrInsufficientBalance
		}
		if _, err := e.ledger.Adjust(ctx, id, -stake); err != nil {
			return err
		}
	}
	room.sides[p] = side

	if isReal {
		e.messenger.Notify(id, fmt.Sprintf("[%s] Bet accepted: %s", room.id, side))
	}
	log.Info().Str("module", "core.engine").Str("room", string(room.id)).Str("participant", p.String()).Str("side", string(side)).Msg("bet placed")
	return nil
}

// Leave drops p from the room in any state. A stake already debited is
// forfeited.
func (e *Engine) Leave(room *Room, p domain.Participant) error {
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.removeMember(p) {
		return domain.ErrNotInRoom
	}
	if len(room.members) == 0 && room.state == domain.StateAwaitingQuorum {
		room.stopGrace()
		room.setState(domain.StateOpen)
	}
	if id, ok := p.RealID(); ok {
		e.messenger.Notify(id, fmt.Sprintf("You left room [%s].", room.id))
		if e.presence != nil {
			e.presence.Released(id, room.id)
		}
	}
	return nil
}

// broadcast notifies every real participant in ps.
func (e *Engine) broadcast(ps []domain.Participant, text string) {
	for _, id := range domain.RealIDs(ps) {
		e.messenger.Notify(id, text)
	}
}

func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}
