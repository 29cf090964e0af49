package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Logger is the minimal structured logging surface the backend client needs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// Config configures the event-channel client.
type Config struct {
	BaseURL  string // e.g. http://localhost:3000, converted to ws(s):// for the socket
	Password string
	AgentID  string

	PingInterval   time.Duration
	StaleThreshold time.Duration

	TokenRefreshAfter time.Duration
	TokenValidFor     time.Duration

	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration
}

func (c Config) defaults() Config {
	if c.PingInterval == 0 {
		c.PingInterval = 60 * time.Second
	}
	if c.StaleThreshold == 0 {
		c.StaleThreshold = 120 * time.Second
	}
	if c.TokenRefreshAfter == 0 {
		c.TokenRefreshAfter = 6 * 24 * time.Hour
	}
	if c.TokenValidFor == 0 {
		c.TokenValidFor = 7 * 24 * time.Hour
	}
	if c.ReconnectMinBackoff == 0 {
		c.ReconnectMinBackoff = 500 * time.Millisecond
	}
	if c.ReconnectMaxBackoff == 0 {
		c.ReconnectMaxBackoff = 30 * time.Second
	}
	return c
}

// Status is a snapshot of connection health, safe to read from any
// goroutine.
type Status struct {
	Connected      bool
	ReconnectCount int64
	LastConnect    time.Time
	LastDisconnect time.Time
	TokenAge       time.Duration
}

// Client owns the websocket connection, its reconnect loop, and the health
// ping ticker. Inbound events are delivered to Events(); the orchestrator's
// event-loop goroutine is the sole reader.
type Client struct {
	cfg    Config
	log    Logger
	tokens *tokenStore

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc

	connected      atomic.Bool
	reconnectCount atomic.Int64
	lastConnect    atomic.Value // time.Time
	lastDisconnect atomic.Value // time.Time
	lastPong       atomic.Value // time.Time

	events chan Event

	shutdown chan struct{}
	done     chan struct{}
}

// New constructs a Client. Start must be called to begin connecting; New
// itself never blocks or dials.
func New(cfg Config, log Logger) *Client {
	cfg = cfg.defaults()
	if log == nil {
		log = noopLogger{}
	}
	return &Client{
		cfg:      cfg,
		log:      log,
		tokens:   newTokenStore(cfg.BaseURL, cfg.Password, cfg.TokenRefreshAfter, cfg.TokenValidFor),
		events:   make(chan Event, 64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Events returns the inbound event channel. The orchestrator's event-loop
// goroutine is its only reader.
func (c *Client) Events() <-chan Event { return c.events }

// Start begins the reconnect loop in the background. It never blocks:
// failure to reach the backend at startup must not block the capture
// pipeline.
func (c *Client) Start() {
	go c.reconnectLoop()
}

// Stop signals shutdown and waits for the connection loop to exit.
func (c *Client) Stop() {
	close(c.shutdown)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	<-c.done
}

// Status returns a snapshot of connection health for diagnostics.
func (c *Client) Status() Status {
	s := Status{
		Connected:      c.connected.Load(),
		ReconnectCount: c.reconnectCount.Load(),
		TokenAge:       c.tokens.Age(),
	}
	if v, ok := c.lastConnect.Load().(time.Time); ok {
		s.LastConnect = v
	}
	if v, ok := c.lastDisconnect.Load().(time.Time); ok {
		s.LastDisconnect = v
	}
	return s
}

func (c *Client) reconnectLoop() {
	defer close(c.done)
	backoff := c.cfg.ReconnectMinBackoff

	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		if err := c.connectAndServe(); err != nil {
			c.log.Warn("backend: connection attempt failed", "err", err, "backoff", backoff)
		}

		select {
		case <-c.shutdown:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMaxBackoff {
			backoff = c.cfg.ReconnectMaxBackoff
		}
	}
}

func (c *Client) connectAndServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.tokens.RefreshIfStale(ctx); err != nil {
		c.log.Warn("backend: token refresh failed, deferring to next reconnect", "err", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("backend: acquire token: %w", err)
	}

	wsURL, err := toWebsocketURL(c.cfg.BaseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("backend: dial: %w", err)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"token": token}); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "auth write failed")
		return fmt.Errorf("backend: send auth handshake: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	c.connected.Store(true)
	now := time.Now()
	c.lastConnect.Store(now)
	c.lastPong.Store(now)
	c.reconnectCount.Add(1)
	c.log.Info("backend: connected")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pingLoop(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		c.readLoop(ctx, conn)
	}()
	wg.Wait()

	c.connected.Store(false)
	c.lastDisconnect.Store(time.Now())
	c.mu.Lock()
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	return nil
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, envelope{Type: eventPing}); err != nil {
				return
			}
			if last, ok := c.lastPong.Load().(time.Time); ok {
				if time.Since(last) > c.cfg.StaleThreshold {
					c.log.Warn("backend: no pong received recently", "since", time.Since(last))
				}
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	ev := Event{Type: env.Type}
	switch env.Type {
	case EventPong:
		c.lastPong.Store(time.Now())
		return
	case EventTranscript:
		ev.Text, _ = env.Data["text"].(string)
	case EventThinking:
		ev.Provider, _ = env.Data["provider"].(string)
	case EventTTSChunk:
		if idx, ok := env.Data["index"].(float64); ok {
			ev.Index = int(idx)
		}
		ev.Audio, _ = env.Data["audio"].(string)
		ev.ContentType, _ = env.Data["contentType"].(string)
	case EventTTSDone:
		if n, ok := env.Data["totalChunks"].(float64); ok {
			ev.TotalChunks = int(n)
		}
	case EventError:
		ev.Error, _ = env.Data["error"].(string)
	}

	select {
	case c.events <- ev:
	default:
		c.log.Warn("backend: event mailbox full, dropping event", "type", env.Type)
	}
}

// SendUtterance ships one captured utterance as a single audio_start /
// audio_chunk / audio_end triple, the reference shipping policy from the
// spec's outbound protocol. If the client is disconnected the utterance is
// dropped with a warning rather than buffered, per the documented policy.
func (c *Client) SendUtterance(ctx context.Context, wavPCM []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.log.Warn("backend: dropping utterance, not connected")
		return nil
	}

	if err := wsjson.Write(ctx, conn, envelope{
		Type: eventAudioStart,
		Data: map[string]interface{}{"agentId": c.cfg.AgentID},
	}); err != nil {
		c.log.Warn("backend: dropping utterance, send failed", "err", err)
		return nil
	}

	audio := base64.StdEncoding.EncodeToString(wavPCM)
	if err := wsjson.Write(ctx, conn, envelope{
		Type: eventAudioChunk,
		Data: map[string]interface{}{"agentId": c.cfg.AgentID, "audio": audio, "seq": 0},
	}); err != nil {
		c.log.Warn("backend: dropping utterance mid-send", "err", err)
		return nil
	}

	if err := wsjson.Write(ctx, conn, envelope{
		Type: eventAudioEnd,
		Data: map[string]interface{}{"agentId": c.cfg.AgentID},
	}); err != nil {
		c.log.Warn("backend: audio_end send failed", "err", err)
	}
	return nil
}

func toWebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("backend: parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/voice"
	return u.String(), nil
}
