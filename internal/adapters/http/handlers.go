package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dkeye/LuckyClick/internal/app"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *app.Orchestrator
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{domain.ErrNotInRoom, http.StatusConflict, "not_in_room"},
	{domain.ErrGameInProgress, http.StatusConflict, "game_in_progress"},
	{domain.ErrAlreadyCommitted, http.StatusConflict, "already_committed"},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{domain.ErrInvalidSide, http.StatusBadRequest, "invalid_side"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{domain.ErrDepositNotFound, http.StatusNotFound, "deposit_not_found"},
	{domain.ErrDepositAlreadyCredited, http.StatusConflict, "deposit_already_credited"},
	{domain.ErrNoWithdrawal, http.StatusConflict, "no_withdrawal"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

func writeError(c *gin.Context, err error) {
	var limited *app.RateLimitError
	if errors.As(err, &limited) {
		secs := int64(math.Ceil(limited.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "retry_after": secs})
		return
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.code})
			return
		}
	}
	log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unmapped error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
}

type joinResponse struct {
	Room             domain.RoomID `json:"room"`
	State            string        `json:"state"`
	Late             bool          `json:"late"`
	RemainingSeconds int64         `json:"remaining_seconds,omitempty"`
}

func (h *handlers) listRooms(c *gin.Context) {
	var tier domain.StakeTier
	if raw := c.Query("stake"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, domain.ErrInvalidAmount)
			return
		}
		tier = domain.StakeTier(v)
	}
	rooms, err := h.orch.ListRooms(tier)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *handlers) joinTier(c *gin.Context) {
	var req struct {
		Stake int64 `json:"stake"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.orch.JoinRoom(domain.StakeTier(req.Stake), userOf(c))
	h.writeJoin(c, res.Room, res.State.String(), res.Late, res.Remaining.Seconds(), err)
}

func (h *handlers) joinRoom(c *gin.Context) {
	res, err := h.orch.JoinRoomByID(domain.RoomID(c.Param("id")), userOf(c))
	h.writeJoin(c, res.Room, res.State.String(), res.Late, res.Remaining.Seconds(), err)
}

func (h *handlers) writeJoin(c *gin.Context, room domain.RoomID, state string, late bool, remaining float64, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, joinResponse{
		Room:             room,
		State:            state,
		Late:             late,
		RemainingSeconds: int64(math.Ceil(remaining)),
	})
}

func (h *handlers) placeBet(c *gin.Context) {
	var req struct {
		Side string `json:"side"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeError(c, err)
		return
	}
	room := domain.RoomID(c.Param("id"))
	if err := h.orch.PlaceBet(c.Request.Context(), room, userOf(c), side); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "side": side})
}

func (h *handlers) leaveRoom(c *gin.Context) {
	if err := h.orch.LeaveRoom(domain.RoomID(c.Param("id")), userOf(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) balance(c *gin.Context) {
	view, err := h.orch.BalanceView(c.Request.Context(), userOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) depositInstructions(c *gin.Context) {
	in, err := h.orch.DepositInstructions(userOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *handlers) checkDeposit(c *gin.Context) {
	res, err := h.orch.CheckDeposit(c.Request.Context(), userOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) startWithdrawal(c *gin.Context) {
	if err := h.orch.StartWithdrawal(userOf(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": app.AwaitingAddress.String()})
}

func (h *handlers) withdrawalAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := h.orch.SubmitWithdrawalAddress(userOf(c), req.Address); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": app.AwaitingAmount.String()})
}

func (h *handlers) withdrawalAmount(c *gin.Context) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	receipt, err := h.orch.SubmitWithdrawalAmount(c.Request.Context(), userOf(c), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *handlers) cancelWithdrawal(c *gin.Context) {
	if err := h.orch.CancelWithdrawal(userOf(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
