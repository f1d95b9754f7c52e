package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/LuckyClick/internal/adapters/http"
	signalhub "github.com/dkeye/LuckyClick/internal/adapters/signal"
	"github.com/dkeye/LuckyClick/internal/adapters/ton"
	"github.com/dkeye/LuckyClick/internal/app"
	"github.com/dkeye/LuckyClick/internal/config"
	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
)

type ServeCmd struct{}

func (s *ServeCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Mode == "debug" {
		setupLogger(true)
	}

	st, closeStore, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orch, hub, notifier, err := wire(cfg, st)
	if err != nil {
		return err
	}

	r := router.SetupRouter(ctx, cfg, orch, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return notifier.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				orch.Sweep()
			}
		}
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("LuckyClick server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Uint64("dropped_notifications", notifier.Dropped()).Msg("Server exited gracefully")
	return nil
}

func wire(cfg *config.Config, st store) (*app.Orchestrator, *signalhub.Hub, *core.Notifier, error) {
	minDeposit, err := cfg.MinDeposit()
	if err != nil {
		return nil, nil, nil, err
	}

	hub := signalhub.NewHub(cfg.ReadLimit, cfg.PingPeriod)
	notifier := core.NewNotifier(hub, cfg.NotifyBuffer)
	presence := app.NewPresence()
	clock := quartz.NewReal()

	rules := core.Rules{
		Quorum:        cfg.Quorum,
		GracePeriod:   cfg.GracePeriod,
		BettingWindow: cfg.BettingWindow,
		RakePercent:   cfg.RakePercent,
		Countdown:     cfg.Countdown,
	}
	opts := []core.Option{
		core.WithClock(clock),
		core.WithPresence(presence),
		core.WithOpTimeout(cfg.OpTimeout),
	}
	if cfg.Seed != 0 {
		opts = append(opts, core.WithRand(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))))
	}
	engine := core.NewEngine(rules, st, notifier, opts...)

	tiers := make([]domain.StakeTier, 0, len(cfg.StakeTiers))
	for _, t := range cfg.StakeTiers {
		tiers = append(tiers, domain.StakeTier(t))
	}
	windows := make(map[app.Action]time.Duration, len(cfg.Cooldowns))
	for action, d := range cfg.Cooldowns {
		windows[app.Action(action)] = d
	}

	orch := &app.Orchestrator{
		Rooms:         app.NewRoomRegistry(tiers),
		Presence:      presence,
		Engine:        engine,
		Ledger:        st,
		Deposits:      app.NewDepositService(ton.NewClient(cfg.TON.API, cfg.TON.Wallet, cfg.TON.APIKey), st, st, minDeposit),
		Withdrawals:   app.NewWithdrawalSessions(clock, cfg.WithdrawTTL),
		Cooldowns:     app.NewCooldownTracker(clock, windows),
		Messenger:     notifier,
		DepositWallet: cfg.TON.Wallet,
		AdminID:       domain.UserID(cfg.AdminID),
	}
	log.Info().
		Int("quorum", rules.Quorum).
		Dur("grace", rules.GracePeriod).
		Dur("window", rules.BettingWindow).
		Int64("rake_percent", rules.RakePercent).
		Interface("tiers", cfg.StakeTiers).
		Msg("engine ready")
	return orch, hub, notifier, nil
}
