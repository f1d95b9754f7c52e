package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CoinsPerTON is the fixed exchange rate between TON and in-game coins.
const CoinsPerTON = 1000

// Transfer is one incoming transfer to the deposit wallet.
type Transfer struct {
	Hash    string
	Comment string
	Amount  decimal.Decimal // TON
}

// TransferSource lists the most recent incoming transfers of the deposit
// wallet, newest first.
type TransferSource interface {
	RecentTransfers(ctx context.Context, limit int) ([]Transfer, error)
}

type DepositResult struct {
	TxHash   string `json:"tx_hash"`
	Credited int64  `json:"credited"`
	Balance  int64  `json:"balance"`
}

// DepositService credits transfers whose comment names the user.
type DepositService struct {
	source     TransferSource
	ledger     core.BalanceLedger
	txs        core.TxLedger
	minDeposit decimal.Decimal
	limit      int
}

func NewDepositService(source TransferSource, ledger core.BalanceLedger, txs core.TxLedger, minDeposit decimal.Decimal) *DepositService {
	if minDeposit.IsZero() {
		minDeposit = decimal.RequireFromString("0.1")
	}
	return &DepositService{
		source:     source,
		ledger:     ledger,
		txs:        txs,
		minDeposit: minDeposit,
		limit:      20,
	}
}

// TONToCoins converts a TON amount to whole coins, rounding down.
func TONToCoins(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(CoinsPerTON)).Floor().IntPart()
}

// MinDeposit is the smallest transfer, in TON, that Check credits.
func (d *DepositService) MinDeposit() decimal.Decimal { return d.minDeposit }

// CoinsToTON converts coins back to TON for display.
func CoinsToTON(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).Div(decimal.NewFromInt(CoinsPerTON))
}

func (d *DepositService) Check(ctx context.Context, user domain.UserID) (DepositResult, error) {
	transfers, err := d.source.RecentTransfers(ctx, d.limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			return DepositResult{}, err
		}
		return DepositResult{}, fmt.Errorf("list transfers: %w: %w", domain.ErrUnavailable, err)
	}

	want := user.String()
	var tx *Transfer
	for i := range transfers {
		// The comment must be exactly the user id; a prefix or substring
		// would credit one transfer to several accounts.
		if strings.TrimSpace(transfers[i].Comment) == want {
			tx = &transfers[i]
			break
		}
	}
	if tx == nil {
		return DepositResult{}, domain.ErrDepositNotFound
	}
	if tx.Amount.LessThan(d.minDeposit) {
		return DepositResult{}, domain.ErrInvalidAmount
	}

	fresh, err := d.txs.MarkProcessedIfNew(ctx, user, tx.Hash)
	if err != nil {
		return DepositResult{}, err
	}
	if !fresh {
		return DepositResult{}, domain.ErrDepositAlreadyCredited
	}

	credit := TONToCoins(tx.Amount)
	balance, err := d.ledger.Adjust(ctx, user, credit)
	if err != nil {
		log.Error().Err(err).
			Str("module", "app.deposit").
			Str("user", user.String()).
			Str("tx", tx.Hash).
			Int64("coins", credit).
			Msg("transfer marked processed but credit failed")
		return DepositResult{}, err
	}
	log.Info().Str("module", "app.deposit").Str("user", user.String()).Str("tx", tx.Hash).Int64("coins", credit).Msg("deposit credited")
	return DepositResult{TxHash: tx.Hash, Credited: credit, Balance: balance}, nil
}
