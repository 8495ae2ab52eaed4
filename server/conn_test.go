package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachev1 "github.com/omalloc/courier/api/defined/v1/cache"
	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/proxy"
	"github.com/omalloc/courier/server/mod"
	"github.com/omalloc/courier/storage"
)

// origin is a scripted upstream: it serves the same payload to every
// connection and remembers how often it was contacted and what it was sent.
type origin struct {
	ln       net.Listener
	response []byte

	hits     atomic.Int32
	mu       sync.Mutex
	requests [][]byte
}

func startOrigin(t *testing.T, response []byte) *origin {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	o := &origin{ln: ln, response: response}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go o.serve(c)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return o
}

func (o *origin) serve(c net.Conn) {
	defer c.Close()
	o.hits.Add(1)

	// read until the blank line ends the request head
	buf := make([]byte, 32*1024)
	total := 0
	for {
		n, err := c.Read(buf[total:])
		if err != nil {
			return
		}
		total += n
		if bytes.Contains(buf[:total], []byte("\r\n\r\n")) {
			break
		}
	}

	o.mu.Lock()
	o.requests = append(o.requests, append([]byte(nil), buf[:total]...))
	o.mu.Unlock()

	_, _ = c.Write(o.response)
}

func (o *origin) hostPort(t *testing.T) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(o.ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func (o *origin) lastRequest() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.requests) == 0 {
		return nil
	}
	return o.requests[len(o.requests)-1]
}

func startProxy(t *testing.T, cache cachev1.Cache) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	bc := conf.Default()
	srv := NewServer(ln, bc, cache, proxy.New(bc.Upstream), mod.NewAccessLog(nil))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = srv.Stop(stopCtx)
	})

	return ln.Addr().String()
}

// doRequest writes one raw request and drains the connection to EOF.
func doRequest(t *testing.T, proxyAddr, raw string) []byte {
	t.Helper()

	c, err := net.Dial("tcp", proxyAddr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte(raw))
	require.NoError(t, err)

	resp, err := io.ReadAll(c)
	require.NoError(t, err)
	return resp
}

func absRequest(host, port, path string, extra string) string {
	return fmt.Sprintf("GET http://%s:%s%s HTTP/1.1\r\n%s\r\n", host, port, path, extra)
}

func TestProxyHitMiss(t *testing.T) {
	response := []byte("HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\nhello proxy\n")
	o := startOrigin(t, response)
	host, port := o.hostPort(t)

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	first := doRequest(t, addr, absRequest(host, port, "/a", "Host: x\r\n"))
	assert.Equal(t, response, first, "miss relays the origin bytes verbatim")

	second := doRequest(t, addr, absRequest(host, port, "/a", "Host: x\r\n"))
	assert.Equal(t, first, second, "hit must be byte-identical")

	assert.Equal(t, int32(1), o.hits.Load(), "origin contacted exactly once")
	assert.Equal(t, 1, cache.Objects())
	assert.Equal(t, int64(len(response)), cache.Used())
}

func TestProxyTooLargeNotCached(t *testing.T) {
	body := bytes.Repeat([]byte{'x'}, 200000)
	response := append([]byte("HTTP/1.0 200 OK\r\n\r\n"), body...)
	o := startOrigin(t, response)
	host, port := o.hostPort(t)

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	got := doRequest(t, addr, absRequest(host, port, "/big", ""))
	assert.Equal(t, response, got, "oversized objects still relay in full")
	assert.Equal(t, 0, cache.Objects())

	_ = doRequest(t, addr, absRequest(host, port, "/big", ""))
	assert.Equal(t, int32(2), o.hits.Load(), "uncached object re-contacts the origin")
}

func TestProxyBinaryBody(t *testing.T) {
	body := []byte{0x00, 0x01, '\n', 0x00, 0xff, 0xfe, '\n', 0x00}
	response := append([]byte("HTTP/1.0 200 OK\r\n\r\n"), body...)
	o := startOrigin(t, response)
	host, port := o.hostPort(t)

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	assert.Equal(t, response, doRequest(t, addr, absRequest(host, port, "/bin", "")))
	// and from cache
	assert.Equal(t, response, doRequest(t, addr, absRequest(host, port, "/bin", "")))
	assert.Equal(t, int32(1), o.hits.Load())
}

func TestProxyMalformedRequests(t *testing.T) {
	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"post", "POST http://x/ HTTP/1.1\r\n\r\n", "501"},
		{"relative uri", "GET /rel HTTP/1.1\r\n\r\n", "400"},
		{"bad version", "GET http://x/ HTTP/2.0\r\n\r\n", "400"},
		{"garbage", "nonsense\r\n\r\n", "400"},
		{"https scheme", "GET https://x/ HTTP/1.1\r\n\r\n", "400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := string(doRequest(t, addr, tt.raw))
			assert.True(t, strings.HasPrefix(resp, "HTTP/1.0 "+tt.code+" "), "got: %.60s", resp)
			assert.Contains(t, resp, "Content-Type: text/html")
		})
	}
}

func TestProxyOriginUnreachable(t *testing.T) {
	// grab a port that nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	resp := string(doRequest(t, addr, absRequest(host, port, "/", "")))
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.0 503 "), "got: %.60s", resp)
}

func TestProxyHeaderPassthrough(t *testing.T) {
	o := startOrigin(t, []byte("HTTP/1.0 200 OK\r\n\r\nok\n"))
	host, port := o.hostPort(t)

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	extra := "Accept: text/plain\r\nUser-Agent: Foo\r\nHost: h\r\n"
	_ = doRequest(t, addr, absRequest(host, port, "/s6", extra))

	sent := string(o.lastRequest())
	assert.Contains(t, sent, "GET /s6 HTTP/1.0\r\n")
	assert.Contains(t, sent, "Accept: text/plain\r\n")
	assert.Contains(t, sent, "Host: "+host+"\r\n", "Host comes from the URI")
	assert.NotContains(t, sent, "Host: h\r\n")
	assert.NotContains(t, sent, "User-Agent: Foo")
	assert.Contains(t, sent, "Connection: close\r\n")
	assert.Contains(t, sent, "Proxy-Connection: close\r\n")
	assert.True(t, strings.HasSuffix(sent, "\r\n\r\n"))
}

func TestProxyDistinctFingerprints(t *testing.T) {
	o := startOrigin(t, []byte("HTTP/1.0 200 OK\r\n\r\nsame\n"))
	host, port := o.hostPort(t)

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	_ = doRequest(t, addr, absRequest(host, port, "/a", ""))
	_ = doRequest(t, addr, absRequest(host, port, "/b", ""))
	_ = doRequest(t, addr, absRequest(host, port, "/a", ""))

	assert.Equal(t, int32(2), o.hits.Load(), "distinct paths are distinct objects")
	assert.Equal(t, 2, cache.Objects())
}

func TestProxyConcurrentClients(t *testing.T) {
	response := []byte("HTTP/1.0 200 OK\r\n\r\nshared\n")
	o := startOrigin(t, response)
	host, port := o.hostPort(t)

	cache := storage.New(conf.Default().Cache)
	addr := startProxy(t, cache)

	const clients = 20
	results := make([][]byte, clients)

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = doRequest(t, addr, absRequest(host, port, "/hot", ""))
		}(i)
	}
	wg.Wait()

	for i := 0; i < clients; i++ {
		assert.Equal(t, response, results[i])
	}
	// concurrent cold misses may each fetch; publication is serialized
	assert.Equal(t, 1, cache.Objects())
	assert.GreaterOrEqual(t, o.hits.Load(), int32(1))
}

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		line   string
		method string
		uri    string
		ok     bool
	}{
		{"GET http://h/ HTTP/1.0\r\n", "GET", "http://h/", true},
		{"GET http://h/ HTTP/1.1\r\n", "GET", "http://h/", true},
		{"POST http://h/ HTTP/1.1\r\n", "POST", "http://h/", true},
		{"GET  http://h/   HTTP/1.1\r\n", "GET", "http://h/", true},
		{"GET http://h/ HTTP/2.0\r\n", "", "", false},
		{"GET http://h/\r\n", "", "", false},
		{"GET http://h/ HTTP/1.1 extra\r\n", "", "", false},
		{"\r\n", "", "", false},
	}

	for _, tt := range tests {
		method, uri, ok := parseRequestLine([]byte(tt.line))
		assert.Equal(t, tt.ok, ok, "line %q", tt.line)
		if tt.ok {
			assert.Equal(t, tt.method, method)
			assert.Equal(t, tt.uri, uri)
		}
	}
}

func TestWriteErrorShape(t *testing.T) {
	var buf bytes.Buffer
	writeError(&buf, badRequest("GET /rel HTTP/1.1"))

	resp := buf.String()
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.0 400 Bad Request\r\n"))
	assert.Contains(t, resp, "Content-Type: text/html\r\n")
	assert.Contains(t, resp, "Content-Length: ")
	assert.Contains(t, resp, "<h1>400: Bad Request</h1>")
	assert.Contains(t, resp, "GET /rel HTTP/1.1")

	// declared length matches the body
	head, body, found := strings.Cut(resp, "\r\n\r\n")
	require.True(t, found)
	var n int
	for _, line := range strings.Split(head, "\r\n") {
		if strings.HasPrefix(line, "Content-Length: ") {
			_, err := fmt.Sscanf(line, "Content-Length: %d", &n)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, n, len(body))
}
