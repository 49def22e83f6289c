package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
)

const defaultPingInterval = 90 * time.Second

// ErrListenerClosed is returned by WaitForNotification after the lib/pq listener was closed.
var ErrListenerClosed = errors.New("listener closed")

// PQListener is a LISTEN session based on lib/pq's Listener.
// lib/pq reconnects on its own; a reconnect is reported as a Notification with Reconnected set.
type PQListener struct {
	listener     *pq.Listener
	pingInterval time.Duration
}

// NewPQListenerFactory returns a ListenerFactory that opens a lib/pq Listener for dsn.
// minReconnect and maxReconnect bound lib/pq's own reconnect interval.
func NewPQListenerFactory(dsn string, minReconnect, maxReconnect time.Duration) ListenerFactory {
	return func(_ context.Context) (Listener, error) {
		return &PQListener{
			listener:     pq.NewListener(dsn, minReconnect, maxReconnect, nil),
			pingInterval: defaultPingInterval,
		}, nil
	}
}

// Listen subscribes the session to channel.
// lib/pq's Listen does not take a context, so a canceled ctx only stops the wait for it.
func (l *PQListener) Listen(ctx context.Context, channel string) error {
	done := make(chan error, 1)

	go func() {
		done <- l.listener.Listen(channel)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForNotification blocks until a notification arrives or ctx is done.
// The connection is pinged while idle so that a dead connection is noticed.
func (l *PQListener) WaitForNotification(ctx context.Context) (Notification, error) {
	timer := time.NewTimer(l.pingInterval)
	defer timer.Stop()

	for {
		select {
		case n, ok := <-l.listener.Notify:
			if !ok {
				return Notification{}, ErrListenerClosed
			}

			if n == nil {
				return Notification{Reconnected: true}, nil
			}

			return Notification{Channel: n.Channel, Payload: n.Extra}, nil

		case <-timer.C:
			if err := l.listener.Ping(); err != nil {
				return Notification{}, err
			}

			timer.Reset(l.pingInterval)

		case <-ctx.Done():
			return Notification{}, ctx.Err()
		}
	}
}

// Close closes the lib/pq listener.
func (l *PQListener) Close(_ context.Context) error {
	return l.listener.Close()
}
