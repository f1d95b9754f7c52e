package core_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/adapters/ledger"
	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs map[domain.UserID][]string
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[domain.UserID][]string)}
}

func (r *recorder) Notify(user domain.UserID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[user] = append(r.msgs[user], text)
}

func (r *recorder) For(user domain.UserID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs[user]...)
}

func (r *recorder) Contains(user domain.UserID, substr string) bool {
	for _, m := range r.For(user) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type releases struct {
	mu  sync.Mutex
	got []domain.UserID
}

func (p *releases) Released(user domain.UserID, _ domain.RoomID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, user)
}

func (p *releases) Users() []domain.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.UserID(nil), p.got...)
}

// flakyLedger fails credits for the listed users.
type flakyLedger struct {
	core.BalanceLedger
	failCredits map[domain.UserID]bool
}

func (f *flakyLedger) Adjust(ctx context.Context, user domain.UserID, delta int64) (int64, error) {
	if delta > 0 && f.failCredits[user] {
		return 0, fmt.Errorf("write balance: %w", domain.ErrUnavailable)
	}
	return f.BalanceLedger.Adjust(ctx, user, delta)
}

type harness struct {
	engine   *core.Engine
	clock    *quartz.Mock
	msgs     *recorder
	ledger   *ledger.Memory
	presence *releases
}

func newHarness(t *testing.T, opts ...core.Option) *harness {
	t.Helper()
	h := &harness{
		clock:    quartz.NewMock(t),
		msgs:     newRecorder(),
		ledger:   ledger.NewMemory(),
		presence: &releases{},
	}
	n := 0
	base := []core.Option{
		core.WithClock(h.clock),
		core.WithRand(rand.New(rand.NewPCG(1, 2))),
		core.WithPresence(h.presence),
		core.WithFillerTags(func() string {
			n++
			return fmt.Sprintf("filler-%d", n)
		}),
	}
	h.engine = core.NewEngine(core.DefaultRules(), h.ledger, h.msgs, append(base, opts...)...)
	return h
}

func (h *harness) fund(t *testing.T, amount int64, users ...domain.UserID) {
	t.Helper()
	for _, u := range users {
		_, err := h.ledger.Adjust(context.Background(), u, amount)
		require.NoError(t, err)
	}
}

func (h *harness) balance(t *testing.T, user domain.UserID) int64 {
	t.Helper()
	b, err := h.ledger.Balance(context.Background(), user)
	require.NoError(t, err)
	return b
}

func (h *harness) join(t *testing.T, room *core.Room, users ...domain.UserID) {
	t.Helper()
	for _, u := range users {
		_, err := h.engine.Join(room, domain.Real(u))
		require.NoError(t, err)
	}
}

func (h *harness) bet(t *testing.T, room *core.Room, user domain.UserID, side domain.Side) {
	t.Helper()
	require.NoError(t, h.engine.PlaceBet(context.Background(), room, domain.Real(user), side))
}

// advance moves the mock clock forward by d, stopping at every scheduled
// event on the way so callbacks run in order.
func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for d > 0 {
		next, ok := h.clock.Peek()
		if !ok || next > d {
			h.clock.Advance(d).MustWait(ctx)
			return
		}
		h.clock.Advance(next).MustWait(ctx)
		d -= next
	}
}

func countSynthetic(ps []domain.Participant) int {
	n := 0
	for _, p := range ps {
		if p.IsSynthetic() {
			n++
		}
	}
	return n
}
