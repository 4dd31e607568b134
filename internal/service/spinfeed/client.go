// Package spinfeed reads spins from a websocket feed.
package spinfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SpinTrack/internal/domain/models"
	drepo "SpinTrack/internal/domain/repository"
	"SpinTrack/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements SpinStream over a websocket connection.
type Client struct {
	url            string
	source         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger
	now            func() time.Time

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a feed client. Spins are tagged with source.
func New(url, source string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if source == "" {
		source = models.SourceFeed
	}
	return &Client{
		url:            url,
		source:         source,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log.With(logger.String("component", "spinfeed"), logger.String("source", source)),
		now:            time.Now,
	}
}

var _ drepo.SpinStream = (*Client)(nil)

// Connect dials the feed.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("spinfeed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("connected", logger.String("url", c.url))
	return nil
}

type frame struct {
	Type   string          `json:"type"`
	Number *int            `json:"number"`
	Data   json.RawMessage `json:"data"`
}

// parseFrame accepts {"number": n} and {"type":"spin","data":[n,...]}. Other
// frames yield nothing. Range checks are left to the tracker.
func parseFrame(b []byte) ([]int, error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Number != nil {
		return []int{*f.Number}, nil
	}
	if f.Type != "spin" || len(f.Data) == 0 {
		return nil, nil
	}
	var nums []int
	if err := json.Unmarshal(f.Data, &nums); err != nil {
		var one int
		if err2 := json.Unmarshal(f.Data, &one); err2 != nil {
			return nil, fmt.Errorf("spin data: %w", err)
		}
		nums = []int{one}
	}
	return nums, nil
}

// Read streams spins until the connection fails or ctx ends. The error
// channel receives at most one error.
func (c *Client) Read(ctx context.Context) (<-chan *models.Spin, <-chan error) {
	spins := make(chan *models.Spin, 256)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- errors.New("spinfeed conn nil")
		close(spins)
		close(errs)
		return spins, errs
	}

	readCtx, cancel := context.WithCancel(ctx)
	if c.pingInterval > 0 {
		go c.ping(readCtx, conn)
	}

	go func() {
		defer cancel()
		defer close(spins)
		defer close(errs)
		for {
			if readCtx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if readCtx.Err() == nil {
					errs <- fmt.Errorf("spinfeed read: %w", err)
				}
				return
			}
			nums, err := parseFrame(b)
			if err != nil {
				c.log.Debug("skipping frame", logger.Error(err))
				continue
			}
			for _, n := range nums {
				s := &models.Spin{Number: n, Source: c.source, ObservedAt: c.now()}
				select {
				case spins <- s:
				case <-readCtx.Done():
					return
				}
			}
		}
	}()

	return spins, errs
}

func (c *Client) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("ping failed", logger.Error(err))
				return
			}
		}
	}
}

// Reconnect closes the connection, waits the reconnect delay and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Connect(ctx)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
