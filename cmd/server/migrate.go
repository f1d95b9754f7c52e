package main

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/LuckyClick/internal/adapters/ledger"
	"github.com/dkeye/LuckyClick/internal/config"
)

type MigrateCmd struct {
	DSN string `help:"Postgres DSN, defaults to ledger.dsn from the config"`
}

func (m *MigrateCmd) Run() error {
	dsn := m.DSN
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dsn = cfg.Ledger.DSN
	}
	if dsn == "" {
		return errors.New("no postgres dsn configured")
	}
	pg, err := ledger.OpenPostgres(dsn)
	if err != nil {
		return err
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return pg.Migrate(ctx)
}
