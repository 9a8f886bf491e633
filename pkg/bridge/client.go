package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saturn77/mobius-go/pkg/signals"
)

// Client is the subscriber side of the bridge. Frames received from the
// server are decoded and forwarded into a local signal; Send publishes
// events back to the server.
type Client struct {
	conn    *websocket.Conn
	inbound *signals.Signal[RemoteEvent]
	logger  *slog.Logger

	writeMu      sync.Mutex
	writeTimeout time.Duration

	done chan struct{}
	once sync.Once
}

// ClientConfig configures Dial.
type ClientConfig struct {
	// Logger receives decode and connection error logs.
	Logger *slog.Logger

	// WriteTimeout bounds a single Send.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

// Dial connects to a bridge server's /ws endpoint. Received events are
// forwarded into inbound once Run is started.
func Dial(ctx context.Context, url string, inbound *signals.Signal[RemoteEvent], config ClientConfig) (*Client, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", url, err)
	}

	return &Client{
		conn:         conn,
		inbound:      inbound,
		logger:       config.Logger,
		writeTimeout: config.WriteTimeout,
		done:         make(chan struct{}),
	}, nil
}

// Run reads frames until the connection or ctx ends. It blocks; start
// it on its own goroutine when the caller has other work.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("bridge: read: %w", err)
		}

		e, err := DecodeEvent(msg)
		if err != nil {
			c.logger.Error("bridge: frame decode error", "error", err)
			continue
		}

		if c.inbound != nil {
			if err := c.inbound.Send(e); err != nil {
				c.logger.Warn("bridge: inbound signal closed, frame dropped",
					"channel", e.Channel)
			}
		}
	}
}

// Send publishes an event to the server.
func (c *Client) Send(e RemoteEvent) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("bridge: write: %w", err)
	}
	return nil
}

// Close tears down the connection. Idempotent.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
