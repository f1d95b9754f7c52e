package core

import (
	"context"

	"github.com/dkeye/LuckyClick/internal/domain"
)

// BalanceLedger holds per-user coin balances. Adjust must be atomic per call:
// it upserts the user at 0 when unseen, then applies delta. A delta that would
// take the balance below zero fails with domain.ErrInsufficientBalance and
// changes nothing. Store failures wrap domain.ErrUnavailable.
type BalanceLedger interface {
	Balance(ctx context.Context, user domain.UserID) (int64, error)
	Adjust(ctx context.Context, user domain.UserID, delta int64) (int64, error)
}

// TxLedger records external transfers that were already credited.
type TxLedger interface {
	// MarkProcessedIfNew returns true the first time a hash is seen for a user.
	MarkProcessedIfNew(ctx context.Context, user domain.UserID, txHash string) (bool, error)
}

// NotificationSink delivers a text message to a user. Best effort.
type NotificationSink interface {
	Send(ctx context.Context, user domain.UserID, text string) error
}

// Messenger is the fire-and-forget side of notifications used by the engine.
type Messenger interface {
	Notify(user domain.UserID, text string)
}

// PresenceObserver is told when a real user stops being a member of a room,
// whether by leaving or by the room being reset after settlement.
type PresenceObserver interface {
	Released(user domain.UserID, room domain.RoomID)
}
