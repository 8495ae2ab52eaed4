package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	cachev1 "github.com/omalloc/courier/api/defined/v1/cache"
	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/contrib/log"
	"github.com/omalloc/courier/contrib/transport"
	"github.com/omalloc/courier/proxy"
	"github.com/omalloc/courier/server/mod"
)

var _ transport.Server = (*TCPServer)(nil)

// TCPServer is the proxy listener: a single accept loop handing every
// accepted connection to its own goroutine. Workers are fully independent;
// the acceptor never touches a connection after the handoff.
type TCPServer struct {
	ln     net.Listener
	config *conf.Bootstrap

	cache     cachev1.Cache
	upstream  *proxy.Upstream
	accessLog *mod.AccessLog

	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewServer(ln net.Listener, config *conf.Bootstrap, cache cachev1.Cache, upstream *proxy.Upstream, accessLog *mod.AccessLog) *TCPServer {
	return &TCPServer{
		ln:        ln,
		config:    config,
		cache:     cache,
		upstream:  upstream,
		accessLog: accessLog,
	}
}

func (s *TCPServer) Start(ctx context.Context) error {
	log.Infof("proxy listening on %s", s.ln.Addr())

	for {
		rwc, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// transient accept failure; keep serving
			log.Errorf("accept failed: %s", err)
			continue
		}

		s.wg.Add(1)
		_metricActiveConnections.Inc()
		go func(rwc net.Conn) {
			defer func() {
				_metricActiveConnections.Dec()
				s.wg.Done()
			}()

			c := &conn{
				rwc:       rwc,
				remote:    rwc.RemoteAddr().String(),
				cache:     s.cache,
				upstream:  s.upstream,
				cacheConf: s.config.Cache,
				accessLog: s.accessLog,
			}
			c.serve(ctx)
		}(rwc)
	}
}

func (s *TCPServer) Stop(ctx context.Context) error {
	s.closed.Store(true)
	err := s.ln.Close()

	// in-flight connections drain until the stop deadline
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warnf("stop deadline reached with connections still open")
	}
	return err
}
