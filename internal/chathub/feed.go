package chathub

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Feed is a source of changed chat ids. AllChats is sent when changes may
// have been missed.
type Feed interface {
	Events() <-chan uint
	Close() error
}

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
	feedBufferSize       = 256
)

// PGFeed turns postgres NOTIFY payloads on a channel into chat ids. The
// payload is the decimal chat id written by the chat_messages insert trigger.
type PGFeed struct {
	listener *pq.Listener
	events   chan uint
	log      *zap.Logger
}

var _ Feed = (*PGFeed)(nil)

// NewPGFeed opens a dedicated listener connection and LISTENs on channel.
func NewPGFeed(dsn, channel string, logger *zap.Logger) (*PGFeed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("channel", channel))

	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
				log.Warn("chat feed listener connection problem", zap.Error(err))
			case pq.ListenerEventReconnected:
				log.Info("chat feed listener reconnected")
			}
		})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, err
	}

	return &PGFeed{
		listener: listener,
		events:   make(chan uint, feedBufferSize),
		log:      log,
	}, nil
}

func (f *PGFeed) Events() <-chan uint { return f.events }

// Start forwards notifications until ctx is done or the listener is closed,
// then closes Events.
func (f *PGFeed) Start(ctx context.Context) {
	go func() {
		defer close(f.events)
		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n, open := <-f.listener.Notify:
				if !open {
					f.log.Info("chat feed listener closed")
					return
				}
				chatID, ok := parseNotification(n)
				if !ok {
					f.log.Warn("ignoring malformed chat notification", zap.String("payload", n.Extra))
					continue
				}
				select {
				case f.events <- chatID:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				go func() {
					if err := f.listener.Ping(); err != nil {
						f.log.Warn("chat feed listener ping failed", zap.Error(err))
					}
				}()
			}
		}
	}()
}

func (f *PGFeed) Close() error {
	return f.listener.Close()
}

// parseNotification maps a notification to a chat id. A nil notification is
// what pq delivers after a reconnect, when events may have been lost.
func parseNotification(n *pq.Notification) (uint, bool) {
	if n == nil {
		return AllChats, true
	}
	id, err := strconv.ParseUint(strings.TrimSpace(n.Extra), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
