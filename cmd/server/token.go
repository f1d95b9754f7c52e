package main

import (
	"fmt"
	"io"
	"os"
	"time"

	router "github.com/dkeye/LuckyClick/internal/adapters/http"
	"github.com/dkeye/LuckyClick/internal/config"
	"github.com/dkeye/LuckyClick/internal/domain"
)

// TokenCmd prints a session link token for a user. The chat front end runs
// the same signing step when a player opens the web client.
type TokenCmd struct {
	User int64         `arg:"" help:"Numeric user id"`
	TTL  time.Duration `help:"Token lifetime, defaults to link_ttl from the config"`
}

func (t *TokenCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return t.print(os.Stdout, cfg, time.Now())
}

func (t *TokenCmd) print(w io.Writer, cfg *config.Config, now time.Time) error {
	if t.User <= 0 {
		return domain.ErrUserIDInvalid
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = cfg.LinkTTL
	}
	token, err := router.IssueLinkToken(cfg.Secret, domain.UserID(t.User), ttl, now)
	if err != nil {
		return fmt.Errorf("sign link token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
