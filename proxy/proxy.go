package proxy

import (
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/internal/constants"
)

// ErrRequestOverflow means the assembled upstream request outgrew its
// buffer budget.
var ErrRequestOverflow = errors.New("assembled upstream request exceeds buffer")

// Upstream dials origin servers and serializes the forwarded request. The
// origin address comes from the client's absolute-form URI; there is no
// configured backend set.
type Upstream struct {
	dialer    *net.Dialer
	userAgent string
	limit     int
}

type Option func(*Upstream)

func New(c *conf.Upstream, opts ...Option) *Upstream {
	ua := c.UserAgent
	if ua == "" {
		ua = constants.UserAgent
	}

	u := &Upstream{
		dialer: &net.Dialer{
			Timeout:   c.DialTimeout,
			KeepAlive: 30 * time.Second,
		},
		userAgent: ua,
		limit:     constants.LineBufferBytes,
	}

	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithDialer is set custom net.Dialer
func WithDialer(d *net.Dialer) Option {
	return func(u *Upstream) {
		u.dialer = d
	}
}

// Dial opens a fresh connection to the origin. Connection: close
// semantics; one request per connection, the response ends at origin EOF.
func (u *Upstream) Dial(ctx context.Context, host, port string) (net.Conn, error) {
	return u.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
}

// BuildRequest assembles the origin-form HTTP/1.0 request: request line,
// the fixed header set, then the client's pass-through block verbatim. The
// result always ends in the blank-line terminator, whether or not the
// pass-through block carried one.
func (u *Upstream) BuildRequest(host, path string, passthrough []byte) ([]byte, error) {
	buf := make([]byte, 0, u.limit)

	buf = append(buf, "GET "...)
	buf = append(buf, path...)
	buf = append(buf, " HTTP/1.0\r\n"...)
	buf = append(buf, "Host: "...)
	buf = append(buf, host...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Connection: close\r\n"...)
	buf = append(buf, "Proxy-Connection: close\r\n"...)
	buf = append(buf, "User-Agent: "...)
	buf = append(buf, u.userAgent...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, passthrough...)

	if !bytes.HasSuffix(buf, []byte("\r\n\r\n")) {
		buf = append(buf, "\r\n"...)
	}

	if len(buf) > u.limit {
		return nil, ErrRequestOverflow
	}
	return buf, nil
}
