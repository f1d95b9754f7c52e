package ledger_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/dkeye/LuckyClick/internal/adapters/ledger"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface {
	Balance(ctx context.Context, user domain.UserID) (int64, error)
	Adjust(ctx context.Context, user domain.UserID, delta int64) (int64, error)
	MarkProcessedIfNew(ctx context.Context, user domain.UserID, txHash string) (bool, error)
}

func runLedgerSuite(t *testing.T, s store, base domain.UserID) {
	ctx := context.Background()

	t.Run("unknown user reads zero", func(t *testing.T) {
		b, err := s.Balance(ctx, base+1)
		require.NoError(t, err)
		assert.Zero(t, b)
	})

	t.Run("adjust never goes negative", func(t *testing.T) {
		u := base + 2
		b, err := s.Adjust(ctx, u, 300)
		require.NoError(t, err)
		assert.Equal(t, int64(300), b)

		_, err = s.Adjust(ctx, u, -301)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		b, err = s.Adjust(ctx, u, -300)
		require.NoError(t, err)
		assert.Zero(t, b)

		_, err = s.Adjust(ctx, base+3, -1)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	})

	t.Run("concurrent debits", func(t *testing.T) {
		u := base + 4
		_, err := s.Adjust(ctx, u, 500)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Adjust(ctx, u, -100); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 5, ok)
		b, err := s.Balance(ctx, u)
		require.NoError(t, err)
		assert.Zero(t, b)
	})

	t.Run("processed once per user", func(t *testing.T) {
		fresh, err := s.MarkProcessedIfNew(ctx, base+5, "hash-1")
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = s.MarkProcessedIfNew(ctx, base+5, "hash-1")
		require.NoError(t, err)
		assert.False(t, fresh)

		fresh, err = s.MarkProcessedIfNew(ctx, base+6, "hash-1")
		require.NoError(t, err)
		assert.True(t, fresh)
	})
}

func TestMemory(t *testing.T) {
	runLedgerSuite(t, ledger.NewMemory(), 0)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("LUCKY_TEST_DSN")
	if dsn == "" {
		t.Skip("LUCKY_TEST_DSN not set")
	}
	pg, err := ledger.OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })
	require.NoError(t, pg.Migrate(context.Background()))

	// distinct ids per run so reruns against the same database stay green
	base := domain.UserID(os.Getpid()) * 100
	runLedgerSuite(t, pg, base)
}
