package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"QuantLab/internal/domain/models"
	drepo "QuantLab/internal/domain/repository"
	applogger "QuantLab/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client streams OHLCV bars from the feed WebSocket and adapts them to
// MarketStream. Each Read call pumps the current connection; Reconnect
// tears the socket down, waits, and dials again with the same symbols.
type Client struct {
	websocketURL   string
	apiKey         string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

var dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}

// New creates a feed-backed MarketStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, lgr *applogger.Logger) drepo.MarketStream {
	return &Client{
		websocketURL:   websocketURL,
		apiKey:         apiKey,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         lgr,
	}
}

// Connect dials the feed endpoint. The API key travels as a query token.
func (c *Client) Connect(ctx context.Context) error {
	endpoint := c.websocketURL
	if c.apiKey != "" {
		endpoint = fmt.Sprintf("%s?token=%s", c.websocketURL, url.QueryEscape(c.apiKey))
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("feed connected", applogger.String("url", c.websocketURL))
	}
	return nil
}

// Subscribe registers every configured symbol on the open socket.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("feed not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	for _, symbol := range c.symbols {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": symbol}); err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}
	_ = conn.SetWriteDeadline(time.Time{})

	if c.logger != nil {
		c.logger.Info("feed subscribed", applogger.Int("symbols", len(c.symbols)))
	}
	return nil
}

// Read pumps decoded bar events until the connection drops or ctx ends.
// Both channels close when the pump stops; the terminal error, if any,
// arrives on the error channel first.
func (c *Client) Read(ctx context.Context) (<-chan *models.BarEvent, <-chan error) {
	events := make(chan *models.BarEvent, 1024)
	errs := make(chan error, 1)

	conn := c.current()
	if conn == nil {
		errs <- fmt.Errorf("feed not connected")
		close(events)
		close(errs)
		return events, errs
	}

	go c.keepAlive(ctx, conn)
	go c.pump(ctx, conn, events, errs)
	return events, errs
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Client) pump(ctx context.Context, conn *websocket.Conn, events chan<- *models.BarEvent, errs chan<- error) {
	defer close(events)
	defer close(errs)

	dropped := 0
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.markDown()
			// a read error after shutdown is just the socket closing
			if ctx.Err() == nil {
				errs <- fmt.Errorf("feed read: %w", err)
			}
			return
		}
		for _, ev := range decodeFrame(raw) {
			select {
			case events <- ev:
			default:
				dropped++
				if dropped%1000 == 1 && c.logger != nil {
					c.logger.Warn("feed dropping bars, consumer too slow",
						applogger.Int("dropped", dropped))
				}
			}
		}
	}
}

type wireBar struct {
	Symbol string  `json:"s"`
	Millis int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type wireFrame struct {
	Type string    `json:"type"`
	Data []wireBar `json:"data"`
}

// decodeFrame turns one WebSocket frame into bar events. Frames that are
// not bar payloads (acks, status messages) decode to nothing.
func decodeFrame(raw []byte) []*models.BarEvent {
	var frame wireFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "bar" {
		return nil
	}

	events := make([]*models.BarEvent, 0, len(frame.Data))
	for _, b := range frame.Data {
		if b.Symbol == "" {
			continue
		}
		events = append(events, &models.BarEvent{
			Symbol: b.Symbol,
			Bar: models.Bar{
				Timestamp: time.UnixMilli(b.Millis).UTC(),
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			},
		})
	}
	return events
}

// Reconnect drops the current socket, waits the configured delay, then
// dials and resubscribes. The delay keeps a flapping feed from being
// hammered.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close shuts the socket down. Safe to call with no connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

// IsConnected reports whether the last Connect succeeded and the socket
// has not failed or been closed since.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) markDown() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}
