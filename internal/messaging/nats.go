// Package messaging provides a NATS client wrapper for publishing moderation
// events to downstream consumers (dashboards, archival jobs, alerting). It
// handles connection lifecycle and subject naming; all publishing is
// fire-and-forget.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns for moderation events.
const (
	SubjectVerdict          = "moderation.verdict" // + .<community_id>
	SubjectCommunityCreated = "community.created"
	SubjectCommunityRules   = "community.rules_updated"
	SubjectCommunityDeleted = "community.deleted"
)

// Client wraps the NATS connection with helper methods for moderation
// subjects.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "flagwise",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// PublishVerdict publishes a verdict event on moderation.verdict.<communityID>.
func (c *Client) PublishVerdict(communityID string, data []byte) error {
	return c.conn.Publish(SubjectVerdict+"."+communityID, data)
}

// PublishCommunityEvent publishes a community lifecycle event on the given
// subject (one of the SubjectCommunity* constants).
func (c *Client) PublishCommunityEvent(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// SubscribeVerdicts registers a handler for verdict events. A communityID of
// "*" subscribes to verdicts for all communities.
func (c *Client) SubscribeVerdicts(communityID string, handler func(data []byte)) error {
	subject := SubjectVerdict + "." + communityID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// Close unsubscribes all active subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for subject, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("[nats] unsubscribe %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	c.conn.Close()
}
