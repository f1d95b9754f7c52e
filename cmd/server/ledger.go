package main

import (
	"context"
	"fmt"

	"github.com/dkeye/LuckyClick/internal/adapters/ledger"
	"github.com/dkeye/LuckyClick/internal/config"
	"github.com/dkeye/LuckyClick/internal/core"
)

type store interface {
	core.BalanceLedger
	core.TxLedger
}

// openLedger returns the configured ledger and a function releasing it.
func openLedger(ctx context.Context, cfg *config.Config) (store, func(), error) {
	switch cfg.Ledger.Driver {
	case "postgres":
		pg, err := ledger.OpenPostgres(cfg.Ledger.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case "memory":
		return ledger.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
}
