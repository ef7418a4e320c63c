package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/metrics"
)

const (
	readWait     = 90 * time.Second
	dialTimeout  = 10 * time.Second
	reconnectGap = 2 * time.Second
)

// MessageHandler consumes stream messages in arrival order.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.StreamMessage) error
}

// EventClient follows the media server's websocket feed and forwards every
// message to a single handler. One reader per connection keeps the order
// the server sent.
type EventClient struct {
	url      string
	clientID string
	handler  MessageHandler
	dialer   *websocket.Dialer
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewEventClient(rawURL, clientID string, handler MessageHandler, logger *slog.Logger) *EventClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventClient{
		url:      rawURL,
		clientID: clientID,
		handler:  handler,
		dialer:   &websocket.Dialer{HandshakeTimeout: dialTimeout},
		limiter:  rate.NewLimiter(rate.Every(reconnectGap), 1),
		logger:   logger,
	}
}

// Run connects and reconnects until ctx is cancelled.
func (c *EventClient) Run(ctx context.Context) error {
	target, err := c.endpoint()
	if err != nil {
		return err
	}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
		err := c.session(ctx, target)
		if ctx.Err() != nil {
			return nil
		}
		metrics.BackendReconnectsTotal.Inc()
		c.logger.Warn("backend event feed disconnected", slog.String("error", errString(err)))
	}
}

func (c *EventClient) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", err
	}
	if c.clientID != "" {
		q := u.Query()
		q.Set("id", c.clientID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *EventClient) session(ctx context.Context, target string) error {
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	c.logger.Info("backend event feed connected", slog.String("url", c.url))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		var msg domain.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				c.logger.Debug("backend event skipped", slog.String("error", err.Error()))
				continue
			}
			return err
		}
		if msg.Type == "" {
			continue
		}
		if err := c.handler.Handle(ctx, msg); err != nil {
			c.logger.Debug("backend event not applied",
				slog.String("type", msg.Type),
				slog.String("error", err.Error()),
			)
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
