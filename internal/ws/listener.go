package ws

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Publisher receives decoded change events.
type Publisher interface {
	Publish(ev ChangeEvent)
}

// Listener holds a dedicated connection on LISTEN and forwards every
// notification to the hub.
type Listener struct {
	dsn     string
	channel string
	pub     Publisher
	log     *zap.Logger
}

func NewListener(dsn, channel string, pub Publisher, log *zap.Logger) *Listener {
	return &Listener{dsn: dsn, channel: channel, pub: pub, log: log}
}

// Run blocks until ctx is cancelled (nil) or the connection fails.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.log.Info("listening for changes", zap.String("channel", l.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handle(n.Payload)
	}
}

func (l *Listener) handle(payload string) {
	ev, err := DecodeEvent([]byte(payload))
	if err != nil {
		l.log.Warn("undecodable change notification", zap.String("payload", payload), zap.Error(err))
		return
	}
	l.pub.Publish(ev)
}
