package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// StreamLimits bounds how much event history JetStream keeps
type StreamLimits struct {
	MaxAge  time.Duration
	MaxMsgs int64

	// DuplicateWindow is how long JetStream remembers message ids, covering
	// retries of the same forwarded event
	DuplicateWindow time.Duration
}

// DefaultStreamLimits keeps a week of competition events
var DefaultStreamLimits = StreamLimits{
	MaxAge:          7 * 24 * time.Hour,
	MaxMsgs:         100000,
	DuplicateWindow: 2 * time.Minute,
}

// NATSClient publishes domain events to a JetStream stream
type NATSClient struct {
	servers string
	limits  StreamLimits

	mu sync.RWMutex
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewNATSClient creates a client for a comma separated server list
func NewNATSClient(servers string) *NATSClient {
	return &NATSClient{
		servers: servers,
		limits:  DefaultStreamLimits,
	}
}

// WithStreamLimits overrides the retention applied by EnsureStream
func (c *NATSClient) WithStreamLimits(limits StreamLimits) *NATSClient {
	c.limits = limits
	return c
}

// Connect dials NATS and opens a JetStream context. Reconnects are unlimited
// since the bot runs for weeks and forwarding is best effort.
func (c *NATSClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nc, err := nats.Connect(c.servers,
		nats.Name("weatherbot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("server", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.nc = nc
	c.js = js
	c.mu.Unlock()

	log.WithField("servers", c.servers).Info("Connected to NATS with JetStream")
	return nil
}

// Close drains buffered publishes and closes the connection
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil {
		return nil
	}
	err := c.nc.Drain()
	if err != nil {
		c.nc.Close()
	}
	c.nc = nil
	c.js = nil
	if err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// IsConnected returns true if the client is connected to NATS
func (c *NATSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

func (c *NATSClient) jetStream() (nats.JetStreamContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, fmt.Errorf("not connected to NATS JetStream")
	}
	return c.js, nil
}

// EnsureStream creates the stream, or widens an existing one so every
// subject in subjects is captured
func (c *NATSClient) EnsureStream(streamName string, subjects []string) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	info, err := js.StreamInfo(streamName)
	switch {
	case err == nil:
		missing := missingSubjects(info.Config.Subjects, subjects)
		if len(missing) == 0 {
			log.WithField("stream", streamName).Debug("JetStream stream up to date")
			return nil
		}
		updated := info.Config
		updated.Subjects = append(updated.Subjects, missing...)
		if _, err := js.UpdateStream(&updated); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", streamName, err)
		}
		log.WithFields(log.Fields{
			"stream": streamName,
			"added":  missing,
		}).Info("Added subjects to JetStream stream")
		return nil

	case errors.Is(err, nats.ErrStreamNotFound):
		cfg := &nats.StreamConfig{
			Name:        streamName,
			Subjects:    subjects,
			Retention:   nats.LimitsPolicy,
			MaxAge:      c.limits.MaxAge,
			MaxMsgs:     c.limits.MaxMsgs,
			Duplicates:  c.limits.DuplicateWindow,
			Storage:     nats.FileStorage,
			Replicas:    1,
			Description: "Weather competition domain events",
		}
		if _, err := js.AddStream(cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
		log.WithFields(log.Fields{
			"stream":   streamName,
			"subjects": subjects,
		}).Info("Created JetStream stream")
		return nil

	default:
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}
}

// Publish stores data on subject. msgID lets JetStream drop a retried
// duplicate inside the stream's duplicate window.
func (c *NATSClient) Publish(ctx context.Context, subject, msgID string, data []byte) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}

	ack, err := js.Publish(subject, data, opts...)
	if err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject":   subject,
		"size":      len(data),
		"sequence":  ack.Sequence,
		"duplicate": ack.Duplicate,
	}).Debug("Published message to NATS")
	return nil
}

// missingSubjects returns the wanted subjects the stream does not list yet
func missingSubjects(existing, wanted []string) []string {
	var missing []string
	for _, subject := range wanted {
		if !slices.Contains(existing, subject) {
			missing = append(missing, subject)
		}
	}
	return missing
}
