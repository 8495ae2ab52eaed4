package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cachev1 "github.com/omalloc/courier/api/defined/v1/cache"
	"github.com/omalloc/courier/api/defined/v1/cache/object"
	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/contrib/log"
	"github.com/omalloc/courier/contrib/transport"
	"github.com/omalloc/courier/pkg/encoding"
	"github.com/omalloc/courier/pkg/x/runtime"
	"github.com/omalloc/courier/server/mod"
)

var _ transport.Server = (*AdminServer)(nil)

// AdminServer exposes the observability surface on its own listener:
// probes, metrics, build info, cache stats and purge. It speaks normal
// net/http; only the proxy listener works at the byte level.
type AdminServer struct {
	*http.Server

	ln    net.Listener
	cache cachev1.Cache
}

func NewAdminServer(ln net.Listener, config *conf.Admin, cache cachev1.Cache) *AdminServer {
	s := &AdminServer{
		Server: &http.Server{},
		ln:     ln,
		cache:  cache,
	}
	s.Handler = s.newServeMux(config)
	return s
}

func (s *AdminServer) Start(ctx context.Context) error {
	s.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	log.Infof("admin listening on %s", s.ln.Addr())

	if err := s.Serve(s.ln); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *AdminServer) Stop(ctx context.Context) error {
	return s.Shutdown(ctx)
}

func (s *AdminServer) newServeMux(config *conf.Admin) *http.ServeMux {
	mux := http.NewServeMux()

	// profiles handler
	mod.HandlePProf(config.PProf, mux)

	mux.Handle("/favicon.ico", http.NotFoundHandler())

	// version info
	mux.Handle("/version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, runtime.BuildInfo)
	}))

	// metrics
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.Handle("/healthz/startup-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := []byte("ok")

		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))
	mux.Handle("/healthz/liveness-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.Handle("/healthz/readiness-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// cache introspection and purge
	mux.Handle("/cache/stats", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"used_bytes": s.cache.Used(),
			"objects":    s.cache.Objects(),
		})
	}))
	mux.Handle("/cache/purge", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp := r.URL.Query().Get("fp")
		if fp == "" {
			http.Error(w, "missing fp", http.StatusBadRequest)
			return
		}
		if !s.cache.Remove(object.Fingerprint(fp)) {
			http.NotFound(w, r)
			return
		}
		log.Infof("purged %s", fp)
		w.WriteHeader(http.StatusOK)
	}))

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	payload, err := encoding.GetCodec().Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
