package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	_ core.BalanceLedger = (*Postgres)(nil)
	_ core.TxLedger      = (*Postgres)(nil)
)

type balanceRow struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64 `gorm:"not null;default:0;check:balance_non_negative,balance >= 0"`
	UpdatedAt time.Time
}

func (balanceRow) TableName() string { return "balances" }

type processedTx struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	TxHash    string `gorm:"primaryKey;type:varchar(128)"`
	CreatedAt time.Time
}

func (processedTx) TableName() string { return "processed_txs" }

// Postgres keeps balances and processed transfers in PostgreSQL. Each
// Adjust is one conditional UPDATE so concurrent callers never overdraw.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w: %w", domain.ErrUnavailable, err)
	}
	return &Postgres{db: db}, nil
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates or updates the ledger tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&balanceRow{}, &processedTx{}); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	log.Info().Str("module", "ledger.postgres").Msg("ledger tables migrated")
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) Balance(ctx context.Context, user domain.UserID) (int64, error) {
	var row balanceRow
	err := p.db.WithContext(ctx).Where("user_id = ?", int64(user)).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, nil
	case err != nil:
		return 0, unavailable("read balance", err)
	}
	return row.Balance, nil
}

func (p *Postgres) Adjust(ctx context.Context, user domain.UserID, delta int64) (int64, error) {
	var next int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := balanceRow{UserID: int64(user), UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		row := balanceRow{UserID: int64(user)}
		res := tx.Model(&row).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance"}}}).
			Where("balance + ? >= 0", delta).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance + ?", delta),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientBalance
		}
		next = row.Balance
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return 0, err
	case err != nil:
		return 0, unavailable("adjust balance", err)
	}
	return next, nil
}

func (p *Postgres) MarkProcessedIfNew(ctx context.Context, user domain.UserID, txHash string) (bool, error) {
	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&processedTx{UserID: int64(user), TxHash: txHash})
	if res.Error != nil {
		return false, unavailable("mark processed", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
}
