package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXListener is a LISTEN session on a connection taken out of a pgx pool.
type PGXListener struct {
	conn *pgx.Conn
}

// NewPGXListenerFactory returns a ListenerFactory that hijacks one connection of pool per session.
// The connection does not go back to the pool; Close closes it.
func NewPGXListenerFactory(pool *pgxpool.Pool) ListenerFactory {
	return func(ctx context.Context) (Listener, error) {
		pooled, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		return &PGXListener{conn: pooled.Hijack()}, nil
	}
}

// Listen subscribes the session to channel.
func (l *PGXListener) Listen(ctx context.Context, channel string) error {
	_, err := l.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// WaitForNotification blocks until a notification arrives or ctx is done.
func (l *PGXListener) WaitForNotification(ctx context.Context) (Notification, error) {
	n, err := l.conn.WaitForNotification(ctx)
	if err != nil {
		return Notification{}, err
	}

	return Notification{Channel: n.Channel, Payload: n.Payload}, nil
}

// Close closes the hijacked connection.
func (l *PGXListener) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}
