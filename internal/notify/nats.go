package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSNotifier publishes notifications onto per-channel NATS subjects so
// downstream chat bridges can fan them out.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSNotifier connects to the NATS server at url. Subjects are formed as
// "<prefix>.<channel>" with the channel's leading # stripped.
func NewNATSNotifier(url, prefix string, logger *zap.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if prefix == "" {
		prefix = "helpdesk.notifications"
	}
	logger.Info("connected to nats", zap.String("url", url))
	return &NATSNotifier{nc: nc, prefix: prefix, logger: logger}, nil
}

func (n *NATSNotifier) Notify(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := n.prefix + "." + subjectToken(req.Channel)
	if err := n.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	// Flush bounds the call: the broker has the message or ctx expired.
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush notification: %w", err)
	}

	n.logger.Debug("notification published",
		zap.String("subject", subject),
		zap.String("ticket_id", req.TicketID),
	)
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if n != nil && n.nc != nil {
		n.nc.Close()
	}
}

// Ping reports broker connectivity for readiness probes.
func (n *NATSNotifier) Ping(_ context.Context) error {
	if n == nil || n.nc == nil || !n.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func subjectToken(channel string) string {
	token := strings.TrimPrefix(strings.TrimSpace(channel), "#")
	token = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '*', '>':
			return '-'
		}
		return r
	}, token)
	if token == "" {
		return "general"
	}
	return token
}
