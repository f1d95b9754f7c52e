package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

// joinAttempts bounds how often a tier join retries when the room it was
// handed starts settling before the join lands.
const joinAttempts = 3

// Orchestrator is the command API used by the transports.
type Orchestrator struct {
	Rooms       *RoomRegistry
	Presence    *Presence
	Engine      *core.Engine
	Ledger      core.BalanceLedger
	Deposits    *DepositService
	Withdrawals *WithdrawalSessions
	Cooldowns   *CooldownTracker
	Messenger   core.Messenger
	// DepositWallet is the address players send TON to.
	DepositWallet string
	// AdminID receives withdrawal requests. Zero disables the notice.
	AdminID domain.UserID
}

// JoinRoom seats user in the first available room of tier.
func (o *Orchestrator) JoinRoom(tier domain.StakeTier, user domain.UserID) (core.JoinResult, error) {
	var lastErr error
	for range joinAttempts {
		room, err := o.Rooms.FindOrCreate(tier)
		if err != nil {
			return core.JoinResult{}, err
		}
		res, err := o.join(room, user)
		if !errors.Is(err, domain.ErrGameInProgress) {
			return res, err
		}
		lastErr = err
	}
	return core.JoinResult{}, lastErr
}

// JoinRoomByID seats user in a specific room. A running round accepts the
// user as a late joiner.
func (o *Orchestrator) JoinRoomByID(id domain.RoomID, user domain.UserID) (core.JoinResult, error) {
	room, err := o.Rooms.Get(id)
	if err != nil {
		return core.JoinResult{}, err
	}
	return o.join(room, user)
}

func (o *Orchestrator) join(room *core.Room, user domain.UserID) (core.JoinResult, error) {
	if err := o.Presence.Claim(user, room.ID()); err != nil {
		return core.JoinResult{}, err
	}
	res, err := o.Engine.Join(room, domain.Real(user))
	if err != nil {
		o.Presence.Released(user, room.ID())
		return core.JoinResult{}, err
	}
	log.Info().Str("module", "app.orchestrator").Str("user", user.String()).Str("room", string(room.ID())).Bool("late", res.Late).Msg("joined room")
	return res, nil
}

func (o *Orchestrator) PlaceBet(ctx context.Context, id domain.RoomID, user domain.UserID, side domain.Side) error {
	room, err := o.Rooms.Get(id)
	if err != nil {
		return err
	}
	return o.Engine.PlaceBet(ctx, room, domain.Real(user), side)
}

func (o *Orchestrator) LeaveRoom(id domain.RoomID, user domain.UserID) error {
	room, err := o.Rooms.Get(id)
	if err != nil {
		return err
	}
	return o.Engine.Leave(room, domain.Real(user))
}

type BalanceView struct {
	User    domain.UserID `json:"user"`
	Balance int64         `json:"balance"`
	Room    domain.RoomID `json:"room,omitempty"`
}

func (o *Orchestrator) BalanceView(ctx context.Context, user domain.UserID) (BalanceView, error) {
	balance, err := o.Ledger.Balance(ctx, user)
	if err != nil {
		return BalanceView{}, err
	}
	v := BalanceView{User: user, Balance: balance}
	if id, ok := o.Presence.RoomOf(user); ok {
		v.Room = id
	}
	return v, nil
}

func (o *Orchestrator) ListRooms(tier domain.StakeTier) ([]domain.RoomInfo, error) {
	return o.Rooms.List(tier)
}

// CheckCooldown consumes one use of action for user. A refusal is a
// *RateLimitError carrying the time left in the window.
func (o *Orchestrator) CheckCooldown(user domain.UserID, action Action) error {
	if !o.Cooldowns.Allow(user, action) {
		return &RateLimitError{Action: action, RetryAfter: o.Cooldowns.Remaining(user, action)}
	}
	return nil
}

type DepositInstructions struct {
	Wallet      string `json:"wallet"`
	Comment     string `json:"comment"`
	MinDeposit  string `json:"min_deposit"`
	CoinsPerTON int64  `json:"coins_per_ton"`
}

// DepositInstructions tells user where to send TON and what comment to attach
// so CheckDeposit can find the transfer.
func (o *Orchestrator) DepositInstructions(user domain.UserID) (DepositInstructions, error) {
	if o.DepositWallet == "" {
		return DepositInstructions{}, fmt.Errorf("deposit wallet not configured: %w", domain.ErrUnavailable)
	}
	in := DepositInstructions{
		Wallet:      o.DepositWallet,
		Comment:     user.String(),
		MinDeposit:  o.Deposits.MinDeposit().String(),
		CoinsPerTON: CoinsPerTON,
	}
	o.Messenger.Notify(user, fmt.Sprintf("Send at least %s TON to:\n%s\nwith the comment: %s\nThen run the deposit check.", in.MinDeposit, in.Wallet, in.Comment))
	return in, nil
}

func (o *Orchestrator) CheckDeposit(ctx context.Context, user domain.UserID) (DepositResult, error) {
	if err := o.CheckCooldown(user, ActionDepositCheck); err != nil {
		return DepositResult{}, err
	}
	res, err := o.Deposits.Check(ctx, user)
	if err != nil {
		return DepositResult{}, err
	}
	o.Messenger.Notify(user, fmt.Sprintf("Balance topped up by %d coins. Current: %d", res.Credited, res.Balance))
	return res, nil
}

func (o *Orchestrator) StartWithdrawal(user domain.UserID) error {
	if err := o.Withdrawals.Start(user); err != nil {
		return err
	}
	o.Messenger.Notify(user, "Send the TON address to withdraw to.")
	return nil
}

func (o *Orchestrator) SubmitWithdrawalAddress(user domain.UserID, address string) error {
	if err := o.Withdrawals.SubmitAddress(user, address); err != nil {
		return err
	}
	o.Messenger.Notify(user, "Now send the amount in coins.")
	return nil
}

type WithdrawalReceipt struct {
	Amount  int64  `json:"amount"`
	TON     string `json:"ton"`
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// SubmitWithdrawalAmount debits amount and forwards the request to the admin.
func (o *Orchestrator) SubmitWithdrawalAmount(ctx context.Context, user domain.UserID, amount int64) (WithdrawalReceipt, error) {
	if stage, ok := o.Withdrawals.Stage(user); !ok || stage != AwaitingAmount {
		return WithdrawalReceipt{}, domain.ErrNoWithdrawal
	}
	if amount <= 0 {
		return WithdrawalReceipt{}, domain.ErrInvalidAmount
	}
	if err := o.CheckCooldown(user, ActionWithdraw); err != nil {
		return WithdrawalReceipt{}, err
	}
	address, err := o.Withdrawals.BeginPayout(user)
	if err != nil {
		return WithdrawalReceipt{}, err
	}
	balance, err := o.Ledger.Adjust(ctx, user, -amount)
	if err != nil {
		o.Withdrawals.Abort(user)
		return WithdrawalReceipt{}, err
	}
	o.Withdrawals.Finish(user)

	ton := CoinsToTON(amount).String()
	o.Messenger.Notify(user, fmt.Sprintf("Withdrawal of %s TON accepted. Await the transfer.", ton))
	if o.AdminID != 0 {
		o.Messenger.Notify(o.AdminID, fmt.Sprintf("Withdrawal request:\nUser: %d\nAmount: %d coins (≈ %s TON)\nAddress: %s", user, amount, ton, address))
	}
	log.Info().Str("module", "app.orchestrator").Str("user", user.String()).Int64("amount", amount).Str("address", address).Msg("withdrawal requested")
	return WithdrawalReceipt{Amount: amount, TON: ton, Address: address, Balance: balance}, nil
}

func (o *Orchestrator) CancelWithdrawal(user domain.UserID) error {
	if !o.Withdrawals.Cancel(user) {
		return domain.ErrNoWithdrawal
	}
	o.Messenger.Notify(user, "Withdrawal cancelled.")
	return nil
}

// Sweep drops expired cooldown records and withdrawal sessions.
func (o *Orchestrator) Sweep() {
	o.Cooldowns.Sweep()
	o.Withdrawals.Sweep()
}
