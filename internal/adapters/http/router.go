package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/LuckyClick/internal/adapters/signal"
	"github.com/dkeye/LuckyClick/internal/app"
	"github.com/dkeye/LuckyClick/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, hub *signal.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(sessionMiddleware(cfg.Secret))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := &authHandlers{secret: cfg.Secret, now: time.Now}
	r.POST("/auth/link", auth.link)
	r.POST("/auth/logout", auth.logout)

	h := &handlers{orch: orch}
	api := r.Group("/api", UserMiddleware())

	api.GET("/rooms", h.listRooms)
	api.POST("/rooms/join", h.joinTier)
	api.POST("/rooms/:id/join", h.joinRoom)
	api.POST("/rooms/:id/bet", h.placeBet)
	api.POST("/rooms/:id/leave", h.leaveRoom)

	api.GET("/balance", h.balance)
	api.GET("/deposit", h.depositInstructions)
	api.POST("/deposit/check", h.checkDeposit)

	api.POST("/withdraw", h.startWithdrawal)
	api.POST("/withdraw/address", h.withdrawalAddress)
	api.POST("/withdraw/amount", h.withdrawalAmount)
	api.DELETE("/withdraw", h.cancelWithdrawal)

	api.GET("/ws/notifications", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("user", userOf(c).String()).Msg("ws notifications endpoint hit")
		hub.HandleNotifications(ctx, c, userOf(c))
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
