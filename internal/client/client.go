// Package client talks to a shopfloor server: each call dials, sends one
// framed request and reads one framed response.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/and161185/shopfloor/internal/protocol"
)

// Options configure a Client.
type Options struct {
	// TLS enables TLS when non-nil.
	TLS *tls.Config
	// Timeout bounds a whole call when the context has no deadline.
	Timeout time.Duration
	// MaxFrame bounds the response size.
	MaxFrame uint32
}

// Client sends requests to one server address.
type Client struct {
	addr string
	opts Options
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New constructs a Client for addr.
func New(addr string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	c := &Client{addr: addr, opts: opts}
	if opts.TLS != nil {
		d := &tls.Dialer{Config: opts.TLS}
		c.dial = d.DialContext
	} else {
		d := &net.Dialer{}
		c.dial = d.DialContext
	}
	return c
}

// LoadTLS builds a client TLS config. An empty caPath uses the system roots.
func LoadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Do performs one round trip.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	out, err := req.Encode()
	if err != nil {
		return protocol.Response{}, err
	}

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := protocol.WriteFrame(conn, out); err != nil {
		return protocol.Response{}, fmt.Errorf("send: %w", err)
	}
	frame, err := protocol.ReadFrame(conn, c.opts.MaxFrame)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("receive: %w", err)
	}
	return protocol.DecodeResponse(frame)
}

// Login authenticates and returns the response carrying a Session.
func (c *Client) Login(ctx context.Context, email, password string) (protocol.Response, error) {
	return c.credentials(ctx, protocol.KindLogin, protocol.Credentials{Email: email, Password: password})
}

// Register creates a CLIENT account.
func (c *Client) Register(ctx context.Context, email, password, name string) (protocol.Response, error) {
	return c.credentials(ctx, protocol.KindRegister, protocol.Credentials{Email: email, Password: password, Name: name})
}

func (c *Client) credentials(ctx context.Context, kind protocol.Kind, cr protocol.Credentials) (protocol.Response, error) {
	b, err := json.Marshal(cr)
	if err != nil {
		return protocol.Response{}, err
	}
	body := string(b)
	return c.Do(ctx, protocol.Request{Type: kind, Body: &body})
}

// Call sends an action request with a raw JSON body.
func (c *Client) Call(ctx context.Context, code int, token, body string) (protocol.Response, error) {
	return c.Do(ctx, protocol.NewRequest(code, token, body))
}

// CallWith marshals payload as the body of an action request.
func (c *Client) CallWith(ctx context.Context, code int, token string, payload any) (protocol.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return protocol.Response{}, err
	}
	return c.Call(ctx, code, token, string(b))
}

// SessionOf extracts the session from a successful LOGIN or REGISTER response.
func SessionOf(resp protocol.Response) (protocol.Session, error) {
	if !resp.OK() {
		return protocol.Session{}, fmt.Errorf("%d: %s", resp.Code, resp.Message)
	}
	s, ok := resp.Data.(protocol.Session)
	if !ok {
		return protocol.Session{}, fmt.Errorf("unexpected payload %T", resp.Data)
	}
	return s, nil
}
