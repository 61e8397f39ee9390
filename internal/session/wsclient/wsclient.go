// Package wsclient is the coder/websocket transport for the session controller.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/session"
)

// Config controls how the transport connects.
type Config struct {
	URL string
	// Token authenticates a staff connection. It is sent as a bearer header.
	Token string
	// OrderNumber opens a customer tracking connection when Token is empty.
	OrderNumber      string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        64 << 10,
	}
}

// Dialer implements session.Dialer.
type Dialer struct {
	cfg Config
}

var _ session.Dialer = (*Dialer)(nil)

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg}
}

func (d *Dialer) Dial(ctx context.Context) (session.Transport, error) {
	target, header, err := d.target()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrHandshakeRejected, err)
	}

	dialCtx := ctx
	if d.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, resp, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", session.ErrHandshakeRejected, err)
		}
		return nil, err
	}
	if d.cfg.ReadLimit > 0 {
		ws.SetReadLimit(d.cfg.ReadLimit)
	}
	return &Conn{ws: ws, writeTimeout: d.cfg.WriteTimeout}, nil
}

func (d *Dialer) target() (string, http.Header, error) {
	if d.cfg.URL == "" {
		return "", nil, errors.New("empty URL")
	}
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return "", nil, err
	}

	header := http.Header{}
	switch {
	case d.cfg.Token != "":
		header.Set("Authorization", "Bearer "+d.cfg.Token)
	case d.cfg.OrderNumber != "":
		q := u.Query()
		q.Set("order_number", d.cfg.OrderNumber)
		u.RawQuery = q.Encode()
	default:
		return "", nil, errors.New("a token or an order number is required")
	}
	return u.String(), header, nil
}

// Conn wraps websocket.Conn with a write timeout.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

var _ session.Transport = (*Conn)(nil)

func (c *Conn) Send(ctx context.Context, msg domain.ControlMessage) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, c.ws, msg)
}

// Receive blocks until the next frame. Liveness is the gateway's job: it pings
// and the library answers, so no read deadline is set here.
func (c *Conn) Receive(ctx context.Context) (domain.OutboundMessage, error) {
	var msg domain.OutboundMessage
	err := wsjson.Read(ctx, c.ws, &msg)
	return msg, err
}

func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "client close")
}
