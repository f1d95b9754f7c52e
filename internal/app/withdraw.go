package app

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

type WithdrawalStage int

const (
	AwaitingAddress WithdrawalStage = iota + 1
	AwaitingAmount
	// Paying marks a payout in flight so a second amount cannot race it.
	Paying
)

func (s WithdrawalStage) String() string {
	switch s {
	case AwaitingAddress:
		return "awaiting_address"
	case AwaitingAmount:
		return "awaiting_amount"
	case Paying:
		return "paying"
	}
	return "none"
}

type withdrawal struct {
	stage   WithdrawalStage
	address string
	expires time.Time
}

// WithdrawalSessions holds the per-user withdrawal dialog. Sessions expire
// after ttl of inactivity and then behave as absent.
type WithdrawalSessions struct {
	mu       sync.Mutex
	clock    quartz.Clock
	ttl      time.Duration
	sessions map[domain.UserID]*withdrawal
}

func NewWithdrawalSessions(clock quartz.Clock, ttl time.Duration) *WithdrawalSessions {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &WithdrawalSessions{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[domain.UserID]*withdrawal),
	}
}

// lookup returns the live session of user. mu must be held.
func (w *WithdrawalSessions) lookup(user domain.UserID) (*withdrawal, bool) {
	s, ok := w.sessions[user]
	if !ok {
		return nil, false
	}
	if !w.clock.Now().Before(s.expires) {
		delete(w.sessions, user)
		return nil, false
	}
	return s, true
}

// Start opens a fresh dialog, replacing any previous one that is not paying.
func (w *WithdrawalSessions) Start(user domain.UserID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.lookup(user); ok && s.stage == Paying {
		return domain.ErrRateLimited
	}
	w.sessions[user] = &withdrawal{stage: AwaitingAddress, expires: w.clock.Now().Add(w.ttl)}
	return nil
}

func (w *WithdrawalSessions) Stage(user domain.UserID) (WithdrawalStage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.lookup(user)
	if !ok {
		return 0, false
	}
	return s.stage, true
}

func (w *WithdrawalSessions) SubmitAddress(user domain.UserID, address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.lookup(user)
	if !ok || s.stage != AwaitingAddress {
		return domain.ErrNoWithdrawal
	}
	address = strings.TrimSpace(address)
	if !ValidTONAddress(address) {
		return domain.ErrInvalidAddress
	}
	s.address = address
	s.stage = AwaitingAmount
	s.expires = w.clock.Now().Add(w.ttl)
	return nil
}

// BeginPayout moves an AwaitingAmount session to Paying and returns the
// destination address. The caller must end it with Finish or Abort.
func (w *WithdrawalSessions) BeginPayout(user domain.UserID) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.lookup(user)
	if !ok || s.stage != AwaitingAmount {
		return "", domain.ErrNoWithdrawal
	}
	s.stage = Paying
	return s.address, nil
}

// Abort returns a paying session to AwaitingAmount so the user can retry.
func (w *WithdrawalSessions) Abort(user domain.UserID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sessions[user]; ok && s.stage == Paying {
		s.stage = AwaitingAmount
		s.expires = w.clock.Now().Add(w.ttl)
	}
}

func (w *WithdrawalSessions) Finish(user domain.UserID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, user)
}

// Cancel drops the dialog. It reports false when there was none or a payout
// is in flight.
func (w *WithdrawalSessions) Cancel(user domain.UserID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.lookup(user)
	if !ok || s.stage == Paying {
		return false
	}
	delete(w.sessions, user)
	return true
}

// Sweep removes expired sessions and returns how many were dropped.
func (w *WithdrawalSessions) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.clock.Now()
	n := 0
	for user, s := range w.sessions {
		if s.stage != Paying && !now.Before(s.expires) {
			delete(w.sessions, user)
			n++
		}
	}
	if n > 0 {
		log.Debug().Str("module", "app.withdraw").Int("expired", n).Msg("swept withdrawal sessions")
	}
	return n
}

// ValidTONAddress accepts the raw form "wc:hex64" and the 48 character
// user-friendly form in either base64 alphabet.
func ValidTONAddress(addr string) bool {
	if wc, hash, ok := strings.Cut(addr, ":"); ok {
		n, err := strconv.Atoi(wc)
		if err != nil || (n != 0 && n != -1) || len(hash) != 64 {
			return false
		}
		_, err = hex.DecodeString(hash)
		return err == nil
	}
	if len(addr) != 48 {
		return false
	}
	enc := base64.URLEncoding
	if strings.ContainsAny(addr, "+/") {
		enc = base64.StdEncoding
	}
	raw, err := enc.DecodeString(addr)
	return err == nil && len(raw) == 36
}
