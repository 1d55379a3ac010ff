package nats

import (
	"log/slog"

	"github.com/nats-io/nats.go"
)

type Client struct {
	Conn   *nats.Conn
	logger *slog.Logger
	subs   []*nats.Subscription
}

func NewClient(conn *nats.Conn, logger *slog.Logger) *Client {
	return &Client{Conn: conn, logger: logger.With("component", "nats-subscriber")}
}

// SubscribeAll registers every route once during startup.
func (c *Client) SubscribeAll(routes map[string]nats.MsgHandler) error {
	for subject, handler := range routes {
		sub, err := c.Conn.Subscribe(subject, handler)
		if err != nil {
			return err
		}
		c.subs = append(c.subs, sub)
		c.logger.Info("subscribed", "subject", subject)
	}
	return nil
}

// Drain stops every subscription and lets in-flight messages finish.
func (c *Client) Drain() {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("drain failed", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil
}
