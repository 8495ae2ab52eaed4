package server

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"

	cachev1 "github.com/omalloc/courier/api/defined/v1/cache"
	"github.com/omalloc/courier/api/defined/v1/cache/object"
	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/contrib/log"
	"github.com/omalloc/courier/internal/constants"
	"github.com/omalloc/courier/metrics"
	"github.com/omalloc/courier/pkg/bufio"
	perrors "github.com/omalloc/courier/pkg/errors"
	"github.com/omalloc/courier/pkg/iobuf"
	xhttp "github.com/omalloc/courier/pkg/x/http"
	"github.com/omalloc/courier/proxy"
	"github.com/omalloc/courier/server/mod"
)

// conn serves one accepted client connection through the full
// parse → lookup → fetch pipeline, then dies. All per-connection state is
// owned here; the cache is the only shared structure it touches.
type conn struct {
	rwc    net.Conn
	remote string

	cache     cachev1.Cache
	upstream  *proxy.Upstream
	cacheConf *conf.Cache
	accessLog *mod.AccessLog
}

func (c *conn) serve(ctx context.Context) {
	defer c.rwc.Close()

	ctx, info := metrics.WithRequestInfo(ctx, c.remote)
	ctx = log.WithContext(ctx, info.RequestID)
	clog := log.Context(ctx)

	defer func() {
		_metricRequestsTotal.WithLabelValues(strconv.Itoa(info.StatusCode), orDash(info.CacheStatus)).Inc()
		c.accessLog.Write(info)
	}()

	br := bufio.NewReader(c.rwc, c.cacheConf.LineBufferBytes)
	line := make([]byte, c.cacheConf.LineBufferBytes)

	// request line
	n, err := br.ReadLine(line)
	if err != nil || n == 0 {
		// client connected and went away; nothing to answer
		return
	}

	method, uri, ok := parseRequestLine(line[:n])
	if !ok {
		c.fail(clog, badRequest(string(bytes.TrimRight(line[:n], "\r\n"))), info)
		return
	}
	info.Method = method
	info.URI = uri

	if method != "GET" {
		c.fail(clog, notImplemented(method), info)
		return
	}

	host, port, path, err := xhttp.ParseURI(uri)
	if err != nil {
		c.fail(clog, badRequest(uri), info)
		return
	}

	// pass-through headers, client terminator included
	passthrough, err := xhttp.ReadPassthroughHeaders(br, c.cacheConf.LineBufferBytes)
	if err != nil {
		c.fail(clog, badRequest(err.Error()), info)
		return
	}

	fp := object.New(host, port, path)
	info.Fingerprint = fp.String()

	if obj, hit := c.cache.Lookup(fp); hit {
		body := obj.Bytes()
		status := responseStatus(firstLine(body))
		err := writeAll(c.rwc, body)
		sent := obj.Size()
		obj.Release()
		if err != nil {
			_metricClientAborts.Inc()
			return
		}

		info.CacheStatus = constants.CacheStatusHit
		info.StatusCode = status
		info.BytesSent = sent
		metrics.CountRelayBytes(sent)
		return
	}

	c.fetch(ctx, clog, info, fp, host, port, path, passthrough)
}

// fetch performs the miss path: connect to the origin, forward the
// rewritten request, relay the response line by line while teeing a
// bounded copy, then publish the copy if the whole response fit.
func (c *conn) fetch(ctx context.Context, clog *log.Helper, info *metrics.RequestInfo,
	fp object.Fingerprint, host, port, path string, passthrough []byte) {

	request, err := c.upstream.BuildRequest(host, path, passthrough)
	if err != nil {
		c.fail(clog, internalError(host), info)
		return
	}

	origin, err := c.upstream.Dial(ctx, host, port)
	if err != nil {
		_metricUpstreamErrors.WithLabelValues("dial").Inc()
		c.fail(clog, serviceUnavailable("Proxy cannot connect to the server", host+":"+port), info)
		return
	}
	defer origin.Close()
	info.Upstream = origin.RemoteAddr().String()

	if err := writeAll(origin, request); err != nil {
		_metricUpstreamErrors.WithLabelValues("send").Inc()
		c.fail(clog, serviceUnavailable("Proxy cannot send request to the server", host+":"+port), info)
		return
	}

	// relay and tee; the response ends when the origin closes
	or := bufio.NewReader(origin, c.cacheConf.LineBufferBytes)
	capture := iobuf.NewCapture(c.cacheConf.MaxObjectBytes)
	line := make([]byte, c.cacheConf.LineBufferBytes)

	first := true
	var sent int64
	for {
		n, rerr := or.ReadLine(line)
		if n > 0 {
			if werr := writeAll(c.rwc, line[:n]); werr != nil {
				// client gave up; drop the fetch on the floor
				_metricClientAborts.Inc()
				return
			}
			if first {
				info.StatusCode = responseStatus(line[:n])
				first = false
			}
			_, _ = capture.Write(line[:n])
			sent += int64(n)
		}
		if rerr != nil {
			break
		}
	}

	info.CacheStatus = constants.CacheStatusMiss
	info.BytesSent = sent
	metrics.CountRelayBytes(sent)

	if capture.Overflowed() {
		clog.Debugf("object %s is %d bytes, not cached", fp, capture.Total())
		info.CacheStatus = constants.CacheStatusSkip
		return
	}
	c.cache.Store(fp, capture.Bytes())
}

func (c *conn) fail(clog *log.Helper, e *perrors.Error, info *metrics.RequestInfo) {
	clog.Warnf("request failed: %s", e)
	info.StatusCode = e.Code
	writeError(c.rwc, e)
}

// parseRequestLine validates `METHOD SP URI SP HTTP/1.X CRLF` with X in
// {0,1} and returns the method and URI.
func parseRequestLine(line []byte) (method, uri string, ok bool) {
	fields := strings.Fields(string(bytes.TrimRight(line, "\r\n")))
	if len(fields) != 3 {
		return "", "", false
	}
	if fields[2] != "HTTP/1.0" && fields[2] != "HTTP/1.1" {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// responseStatus sniffs the status code out of the origin status line for
// the access log. The relay itself never interprets the response.
func responseStatus(line []byte) int {
	fields := strings.Fields(string(line))
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

func firstLine(body []byte) []byte {
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		return body[:i+1]
	}
	return body
}

func writeAll(w net.Conn, p []byte) error {
	_, err := w.Write(p)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
