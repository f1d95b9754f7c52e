package app_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/adapters/ledger"
	"github.com/dkeye/LuckyClick/internal/app"
	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	msgs map[domain.UserID][]string
}

func (i *inbox) Notify(user domain.UserID, text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.msgs == nil {
		i.msgs = make(map[domain.UserID][]string)
	}
	i.msgs[user] = append(i.msgs[user], text)
}

func (i *inbox) Last(user domain.UserID) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	m := i.msgs[user]
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1]
}

func (i *inbox) Contains(user domain.UserID, substr string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, m := range i.msgs[user] {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type transfers struct {
	list []app.Transfer
	err  error
}

func (t *transfers) RecentTransfers(context.Context, int) ([]app.Transfer, error) {
	return t.list, t.err
}

func ton(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const adminID domain.UserID = 999

type fixture struct {
	orch      *app.Orchestrator
	clock     *quartz.Mock
	ledger    *ledger.Memory
	inbox     *inbox
	transfers *transfers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:     quartz.NewMock(t),
		ledger:    ledger.NewMemory(),
		inbox:     &inbox{},
		transfers: &transfers{},
	}
	presence := app.NewPresence()
	engine := core.NewEngine(core.DefaultRules(), f.ledger, f.inbox,
		core.WithClock(f.clock),
		core.WithPresence(presence),
	)
	f.orch = &app.Orchestrator{
		Rooms:       app.NewRoomRegistry([]domain.StakeTier{100, 300, 500, 1000}),
		Presence:    presence,
		Engine:      engine,
		Ledger:      f.ledger,
		Deposits:    app.NewDepositService(f.transfers, f.ledger, f.ledger, ton("0.1")),
		Withdrawals: app.NewWithdrawalSessions(f.clock, 5*time.Minute),
		Cooldowns: app.NewCooldownTracker(f.clock, map[app.Action]time.Duration{
			app.ActionDepositCheck: time.Minute,
			app.ActionWithdraw:     time.Minute,
		}),
		Messenger:     f.inbox,
		DepositWallet: "EQdeposit",
		AdminID:       adminID,
	}
	return f
}

func (f *fixture) fund(t *testing.T, user domain.UserID, amount int64) {
	t.Helper()
	_, err := f.ledger.Adjust(context.Background(), user, amount)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, user domain.UserID) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), user)
	require.NoError(t, err)
	return b
}

func (f *fixture) advance(t *testing.T, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for d > 0 {
		next, ok := f.clock.Peek()
		if !ok || next > d {
			f.clock.Advance(d).MustWait(ctx)
			return
		}
		f.clock.Advance(next).MustWait(ctx)
		d -= next
	}
}
