package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudflare/tableflip"
	"golang.org/x/sync/errgroup"

	"github.com/omalloc/courier/contrib/log"
	"github.com/omalloc/courier/contrib/transport"
)

// App drives a set of transport servers: start them together, stop them
// together on SIGINT/SIGTERM, and hand the listeners to a fresh binary on
// SIGUSR2 via tableflip.
type App struct {
	opts options
}

type options struct {
	id          string
	name        string
	version     string
	stopTimeout time.Duration
	servers     []transport.Server
	flip        *tableflip.Upgrader
}

type Option func(*options)

func ID(id string) Option                 { return func(o *options) { o.id = id } }
func Name(name string) Option             { return func(o *options) { o.name = name } }
func Version(version string) Option       { return func(o *options) { o.version = version } }
func StopTimeout(d time.Duration) Option  { return func(o *options) { o.stopTimeout = d } }
func Upgrader(u *tableflip.Upgrader) Option {
	return func(o *options) { o.flip = u }
}
func Server(srv ...transport.Server) Option {
	return func(o *options) { o.servers = append(o.servers, srv...) }
}

func New(opts ...Option) *App {
	o := options{
		stopTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &App{opts: o}
}

// Run blocks until a termination signal or a server failure. A peer that
// disappears mid-write must not kill the process, so SIGPIPE is ignored
// process-wide before anything starts serving.
func (a *App) Run() error {
	signal.Ignore(syscall.SIGPIPE)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range a.opts.servers {
		srv := srv
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), a.opts.stopTimeout)
			defer stopCancel()
			return srv.Stop(stopCtx)
		})
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	log.Infof("%s %s (%s) started", a.opts.name, a.opts.version, a.opts.id)

	if a.opts.flip != nil {
		if err := a.opts.flip.Ready(); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			select {
			case <-a.opts.flip.Exit():
				// the new binary took over; drain and go away
				log.Infof("upgrade complete, shutting down")
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case s := <-sig:
				switch s {
				case syscall.SIGUSR2:
					if a.opts.flip == nil {
						continue
					}
					log.Infof("received SIGUSR2, starting upgrade")
					if err := a.opts.flip.Upgrade(); err != nil {
						log.Errorf("upgrade failed: %s", err)
					}
				default:
					log.Infof("received %s, shutting down", s)
					cancel()
					return nil
				}
			}
		}
	})

	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
