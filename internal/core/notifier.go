package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/rs/zerolog/log"
)

type outbound struct {
	user domain.UserID
	text string
}

// Notifier queues messages for a NotificationSink and delivers them from its
// own goroutine. Notify never blocks: a full queue drops the message.
type Notifier struct {
	sink    NotificationSink
	queue   chan outbound
	timeout time.Duration
	dropped atomic.Uint64
}

func NewNotifier(sink NotificationSink, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &Notifier{
		sink:    sink,
		queue:   make(chan outbound, buffer),
		timeout: 5 * time.Second,
	}
}

func (n *Notifier) Notify(user domain.UserID, text string) {
	select {
	case n.queue <- outbound{user: user, text: text}:
	default:
		n.dropped.Add(1)
		log.Warn().Str("module", "core.notifier").Str("user", user.String()).Msg("notification queue full, dropping message")
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }

// Run delivers queued messages until ctx is done, then flushes what is left.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n.flush()
			return nil
		case m := <-n.queue:
			n.deliver(context.Background(), m)
		}
	}
}

func (n *Notifier) flush() {
	for {
		select {
		case m := <-n.queue:
			n.deliver(context.Background(), m)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(parent context.Context, m outbound) {
	ctx, cancel := context.WithTimeout(parent, n.timeout)
	defer cancel()
	if err := n.sink.Send(ctx, m.user, m.text); err != nil {
		log.Debug().Err(err).Str("module", "core.notifier").Str("user", m.user.String()).Msg("notification not delivered")
	}
}
