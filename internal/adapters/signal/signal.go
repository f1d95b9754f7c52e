package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/LuckyClick/internal/core"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrNotConnected = errors.New("user not connected")
)

var _ core.NotificationSink = (*Hub)(nil)

type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Hub fans notifications out to every open websocket of a user.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.UserID]map[*WsSignalConn]struct{}

	readLimit  int64
	pingPeriod time.Duration
}

func NewHub(readLimit int64, pingPeriod time.Duration) *Hub {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Hub{
		conns:      make(map[domain.UserID]map[*WsSignalConn]struct{}),
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

type notification struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send implements core.NotificationSink. Delivery succeeds if at least one
// connection of the user accepted the message.
func (h *Hub) Send(_ context.Context, user domain.UserID, text string) error {
	b, err := json.Marshal(notification{Type: "notification", Text: text})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.conns[user]
	if len(conns) == 0 {
		return ErrNotConnected
	}
	var errs []error
	for c := range conns {
		if err := c.TrySend(b); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(conns) {
		return errors.Join(errs...)
	}
	return nil
}

// Connected reports how many sockets the user has open.
func (h *Hub) Connected(user domain.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[user])
}

func (h *Hub) bind(user domain.UserID, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[user]
	if !ok {
		set = make(map[*WsSignalConn]struct{})
		h.conns[user] = set
	}
	set[c] = struct{}{}
	log.Info().Str("module", "signal").Str("user", user.String()).Int("conns", len(set)).Msg("bound notification socket")
}

func (h *Hub) unbind(user domain.UserID, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[user]
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, user)
	}
	log.Info().Str("module", "signal").Str("user", user.String()).Msg("unbound notification socket")
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleNotifications upgrades the request and streams the user's
// notifications until either side closes.
func (h *Hub) HandleNotifications(ctx context.Context, c *gin.Context, user domain.UserID) {
	log.Info().Str("module", "signal").Str("user", user.String()).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if h.readLimit > 0 {
		ws.SetReadLimit(h.readLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
	h.bind(user, conn)

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, conn)
	go func() {
		defer cancel()
		defer h.unbind(user, conn)
		h.readPump(ctx, user, conn)
	}()
}
