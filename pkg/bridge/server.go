package bridge

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/saturn77/mobius-go/pkg/metrics"
	"github.com/saturn77/mobius-go/pkg/signals"
)

// Config configures the bridge server.
type Config struct {
	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int

	// MaxMessageSize limits inbound frames.
	MaxMessageSize int64

	// SendBuffer is the per-subscriber outbound queue length. A
	// subscriber whose queue is full has frames dropped, not queued.
	SendBuffer int

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings idle subscribers.
	PingInterval time.Duration

	// PongTimeout is how long a subscriber may go without answering.
	PongTimeout time.Duration

	// CheckOrigin is passed to the upgrader. Nil allows same-origin
	// per gorilla's default.
	CheckOrigin func(*http.Request) bool

	// Logger receives connection lifecycle and error logs.
	Logger *slog.Logger

	// Metrics, when set, counts dropped frames.
	Metrics *metrics.Dispatch
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  1 << 20,
		SendBuffer:      64,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server fans published events out to WebSocket subscribers and feeds
// inbound frames into a local signal.
type Server struct {
	inbound  *signals.Signal[RemoteEvent]
	upgrader websocket.Upgrader
	config   Config
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewServer creates a bridge server. Frames received from subscribers
// are decoded and sent into inbound; events given to Publish are fanned
// out to every subscriber.
func NewServer(inbound *signals.Signal[RemoteEvent], config Config) *Server {
	config.applyDefaults()
	return &Server{
		inbound: inbound,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		logger: config.Logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Routes returns a router serving /ws and /healthz, ready to mount.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.HandleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// HandleWS upgrades the connection and runs it until either side
// closes.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("bridge: websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, s.config.SendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("bridge: subscriber connected", "remote", conn.RemoteAddr())

	go s.writePump(sub)
	s.readPump(sub)
}

// Publish encodes e and queues it for every subscriber. Subscribers
// that cannot keep up lose the frame.
func (s *Server) Publish(e RemoteEvent) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	targets := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		targets = append(targets, sub)
	}
	s.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.send <- data:
		case <-sub.done:
		default:
			s.config.Metrics.RecordDrop(e.Channel, "slow_subscriber")
			s.logger.Warn("bridge: frame dropped for slow subscriber",
				"channel", e.Channel,
				"remote", sub.conn.RemoteAddr())
		}
	}
	return nil
}

// Subscribers reports the current connection count.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	targets := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		targets = append(targets, sub)
	}
	s.mu.Unlock()

	for _, sub := range targets {
		sub.close()
	}
}

func (s *Server) remove(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// readPump decodes inbound frames and forwards them to the inbound
// signal. It returns when the connection errors or closes.
func (s *Server) readPump(sub *subscriber) {
	defer func() {
		s.remove(sub)
		sub.close()
	}()

	sub.conn.SetReadLimit(s.config.MaxMessageSize)
	sub.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
		return nil
	})

	for {
		_, msg, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("bridge: read error", "error", err)
			}
			return
		}

		e, err := DecodeEvent(msg)
		if err != nil {
			s.logger.Error("bridge: frame decode error", "error", err)
			continue
		}

		if s.inbound != nil {
			if err := s.inbound.Send(e); err != nil {
				s.logger.Warn("bridge: inbound signal closed, frame dropped",
					"channel", e.Channel)
			}
		}
	}
}

// writePump drains the subscriber's queue and keeps the connection
// alive with pings. One writer per connection; gorilla conns do not
// allow concurrent writes.
func (s *Server) writePump(sub *subscriber) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("bridge: write failed", "error", err)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.done:
			sub.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			sub.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
