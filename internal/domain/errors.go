package domain

import "errors"

// Recoverable, user-facing failures. Adapters wrap store errors around
// ErrUnavailable so callers can match with errors.Is.
var (
	ErrAlreadyJoined          = errors.New("already joined")
	ErrNotInRoom              = errors.New("not in room")
	ErrGameInProgress         = errors.New("game in progress")
	ErrAlreadyCommitted       = errors.New("already committed")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrUnavailable            = errors.New("unavailable")
	ErrRateLimited            = errors.New("rate limited")
	ErrRoomNotFound           = errors.New("room not found")
	ErrInvalidSide            = errors.New("invalid side")
	ErrDepositNotFound        = errors.New("deposit not found")
	ErrDepositAlreadyCredited = errors.New("deposit already credited")
	ErrNoWithdrawal           = errors.New("no withdrawal in progress")
)
