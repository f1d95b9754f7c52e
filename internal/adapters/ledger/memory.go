package ledger

import (
	"context"
	"sync"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
)

var (
	_ core.BalanceLedger = (*Memory)(nil)
	_ core.TxLedger      = (*Memory)(nil)
)

type txKey struct {
	user domain.UserID
	hash string
}

// Memory is a process-local ledger. Every call is atomic under one mutex.
type Memory struct {
	mu        sync.Mutex
	balances  map[domain.UserID]int64
	processed map[txKey]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		balances:  make(map[domain.UserID]int64),
		processed: make(map[txKey]struct{}),
	}
}

func (m *Memory) Balance(_ context.Context, user domain.UserID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[user], nil
}

func (m *Memory) Adjust(_ context.Context, user domain.UserID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.balances[user] + delta
	if next < 0 {
		return m.balances[user], domain.ErrInsufficientBalance
	}
	m.balances[user] = next
	return next, nil
}

func (m *Memory) MarkProcessedIfNew(_ context.Context, user domain.UserID, txHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := txKey{user: user, hash: txHash}
	if _, ok := m.processed[k]; ok {
		return false, nil
	}
	m.processed[k] = struct{}{}
	return true, nil
}
