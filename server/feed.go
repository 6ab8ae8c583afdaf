// Package server streams pipeline state to browsers and tools over
// WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/tracker"
)

var ErrAlreadyServing = errors.New("feed already serving")

// StateProvider is what the feed reads from; *tracker.Pipeline satisfies it
type StateProvider interface {
	State() tracker.State
}

// FrequencySetter is optionally implemented by the provider to accept
// emitted-frequency changes from clients
type FrequencySetter interface {
	SetEmittedFrequency(hz float64) error
}

// Config for the feed server
type Config struct {
	Address        string        `json:"address" yaml:"address" mapstructure:"address"`
	Endpoint       string        `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Interval       time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	SendBuffer     int           `json:"send_buffer" yaml:"send_buffer" mapstructure:"send_buffer"`
	MaxConnections int           `json:"max_connections" yaml:"max_connections" mapstructure:"max_connections"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// DefaultConfig serves /ws on :8080 and pushes ten times a second
func DefaultConfig() Config {
	return Config{
		Address:      ":8080",
		Endpoint:     "/ws",
		Interval:     100 * time.Millisecond,
		SendBuffer:   16,
		WriteTimeout: 2 * time.Second,
	}
}

// Command is an inbound client message
type Command struct {
	Type      string  `json:"type"`
	Frequency float64 `json:"frequency,omitempty"`
}

const CommandSetEmittedFrequency = "set_emitted_frequency"

// Feed pushes the provider's state to every connected client whenever the
// state sequence advances
type Feed struct {
	cfg      Config
	provider StateProvider

	connsMu sync.Mutex
	conns   map[*websocket.Conn]*client

	serverMu sync.Mutex
	server   *http.Server

	logger logging.Logger
}

// NewFeed validates cfg and returns an idle feed
func NewFeed(cfg Config, provider StateProvider, logger logging.Logger) (*Feed, error) {
	if provider == nil {
		return nil, errors.New("state provider cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint not configured")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}

	return &Feed{
		cfg:      cfg,
		provider: provider,
		conns:    make(map[*websocket.Conn]*client),
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "feed",
			"endpoint":  cfg.Endpoint,
		}),
	}, nil
}

// Serve listens on the configured address and pushes state until ctx is done
func (f *Feed) Serve(ctx context.Context) error {
	f.serverMu.Lock()
	if f.server != nil {
		f.serverMu.Unlock()
		return ErrAlreadyServing
	}
	f.server = &http.Server{
		Addr:    f.cfg.Address,
		Handler: f.Handler(ctx),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	srv := f.server
	f.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		f.logger.Info("starting feed server", logging.Fields{"address": f.cfg.Address})
		errCh <- srv.ListenAndServe()
	}()

	defer f.closeAll("server shutting down")
	go f.Run(ctx)

	select {
	case <-ctx.Done():
		f.logger.Info("context canceled, shutting down feed server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error(err, "feed server error")
			return err
		}
		return nil
	}
}

// Run broadcasts at the configured interval until ctx is done
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	var last uint64
	sent := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := f.provider.State()
			if sent && state.Sequence == last {
				continue
			}
			if dropped, err := f.Broadcast(state); err != nil {
				f.logger.Error(err, "broadcast failed")
			} else if dropped > 0 {
				f.logger.Warn("slow clients skipped a state update", logging.Fields{"dropped": dropped})
			}
			last, sent = state.Sequence, true
		}
	}
}

// Broadcast sends state to every client and returns how many clients had a
// full send queue
func (f *Feed) Broadcast(state tracker.State) (int, error) {
	conns := f.snapshotConns()
	if len(conns) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("failed to encode state: %w", err)
	}

	dropped := 0
	for _, c := range conns {
		if !c.enqueue(payload) {
			dropped++
		}
	}
	return dropped, nil
}

// Handler serves the WebSocket endpoint plus a plain JSON state endpoint
func (f *Feed) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(f.provider.State()); err != nil {
			f.logger.Error(err, "failed to write state")
		}
	})

	mux.HandleFunc(f.cfg.Endpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if f.cfg.MaxConnections > 0 && f.ConnectionCount() >= f.cfg.MaxConnections {
			http.Error(w, "Too Many Connections", http.StatusServiceUnavailable)
			return
		}

		acceptOptions := &websocket.AcceptOptions{}
		if len(f.cfg.AllowedOrigins) > 0 {
			acceptOptions.OriginPatterns = f.cfg.AllowedOrigins
		}
		conn, err := websocket.Accept(w, r, acceptOptions)
		if err != nil {
			f.logger.Error(err, "websocket accept failed")
			return
		}
		conn.SetReadLimit(4096)

		c := f.addConn(conn)
		f.logger.Info("client connected", logging.Fields{"remote": r.RemoteAddr})

		// new clients get the current state straight away
		if payload, err := json.Marshal(f.provider.State()); err == nil {
			c.enqueue(payload)
		}

		go f.runConn(ctx, c, r.RemoteAddr)
	})

	return mux
}

func (f *Feed) runConn(ctx context.Context, c *client, remote string) {
	defer f.dropConn(c)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := f.writeLoop(connCtx, c); err != nil && !isClosed(err) {
			f.logger.Warn("write loop ended", logging.Fields{"remote": remote, "error": err.Error()})
		}
		cancel()
	}()

	if err := f.readLoop(connCtx, c); err != nil && !isClosed(err) {
		f.logger.Warn("read loop ended", logging.Fields{"remote": remote, "error": err.Error()})
	}

	c.close(websocket.StatusNormalClosure, "connection closed")
	f.logger.Info("client disconnected", logging.Fields{"remote": remote})
}

func (f *Feed) readLoop(ctx context.Context, c *client) error {
	for {
		_, payload, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			f.logger.Warn("ignoring undecodable command", logging.Fields{"error": err.Error()})
			continue
		}
		f.apply(cmd)
	}
}

func (f *Feed) apply(cmd Command) {
	switch cmd.Type {
	case CommandSetEmittedFrequency:
		setter, ok := f.provider.(FrequencySetter)
		if !ok {
			f.logger.Warn("provider does not accept frequency changes")
			return
		}
		if err := setter.SetEmittedFrequency(cmd.Frequency); err != nil {
			f.logger.Warn("rejected emitted frequency", logging.Fields{
				"frequency": cmd.Frequency,
				"error":     err.Error(),
			})
			return
		}
		f.logger.Info("emitted frequency changed", logging.Fields{"frequency": cmd.Frequency})
	default:
		f.logger.Warn("unknown command", logging.Fields{"type": cmd.Type})
	}
}

func (f *Feed) writeLoop(ctx context.Context, c *client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-c.send:
			if !ok {
				return nil
			}
			writeCtx := ctx
			var cancel context.CancelFunc
			if f.cfg.WriteTimeout > 0 {
				writeCtx, cancel = context.WithTimeout(ctx, f.cfg.WriteTimeout)
			}
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				return err
			}
		}
	}
}

func isClosed(err error) bool {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
