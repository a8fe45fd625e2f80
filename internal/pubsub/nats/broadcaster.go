package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flowmap/internal/config"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

// Client publishes freshly generated flow reports so front-end pushers and
// other consumers see updates without polling the files.
type Client struct {
	nc  *nats.Conn
	log logger.Logger
}

func New(log logger.Logger, cfg *config.NATSConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("flowmap"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{nc: nc, log: log}, nil
}

func (c *Client) Publish(ctx context.Context, subject string, data interface{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed marshal payload for %s, error=%w", subject, err)
	}

	if err = c.nc.Publish(subject, b); err != nil {
		return fmt.Errorf("failed publish to %s, error=%w", subject, err)
	}

	c.log.Debugf("Published %d bytes to %s", len(b), subject)
	return nil
}

func (c *Client) Health(_ context.Context) error {
	if c.nc == nil || c.nc.Status() != nats.CONNECTED {
		return errors.New("nats connection not ready")
	}
	return nil
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		c.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	c.nc.Close()
	c.log.Infof("NATS connection closed gracefully")
	return nil
}
