package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/cloudflare/tableflip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/contrib/app"
	"github.com/omalloc/courier/contrib/config"
	"github.com/omalloc/courier/contrib/config/provider/file"
	"github.com/omalloc/courier/contrib/log"
	"github.com/omalloc/courier/contrib/transport"
	"github.com/omalloc/courier/internal/constants"
	"github.com/omalloc/courier/pkg/encoding"
	"github.com/omalloc/courier/pkg/encoding/json"
	"github.com/omalloc/courier/proxy"
	"github.com/omalloc/courier/server"
	"github.com/omalloc/courier/server/mod"
	"github.com/omalloc/courier/storage"
)

var (
	id, _ = os.Hostname()

	// flagConf is the config flag.
	flagConf string
	// flagVerbose is the verbose flag.
	flagVerbose bool

	// Version is the version of the app.
	Version string = "no-set"
	GitHash string = "no-set"
	Built   string = "0"
)

func init() {
	// init flag
	flag.StringVar(&flagConf, "c", "config.yaml", "config file path")
	flag.BoolVar(&flagVerbose, "v", false, "enable verbose log")

	// init global encoding
	encoding.SetDefaultCodec(json.JSONCodec{})

	// init prometheus
	prometheus.Unregister(collectors.NewGoCollector())
	registerer := prometheus.WrapRegistererWithPrefix("courier_", prometheus.DefaultRegisterer)
	registerer.MustRegister(collectors.NewGoCollector(collectors.WithGoCollectorMemStatsMetricsDisabled()))
}

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}
	port := flag.Arg(0)

	c := config.New[conf.Bootstrap](config.WithSource(file.NewSource(flagConf)))
	defer c.Close()

	bc := &conf.Bootstrap{}
	if err := c.Scan(bc); err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}
		// no config file is fine, defaults carry the day
	}
	if err := mergo.Merge(bc, conf.Default()); err != nil {
		log.Fatal(err)
	}
	bc.Server.Addr = net.JoinHostPort("", port)

	log.Init(bc.Logger, flagVerbose)

	app, err := newApp(c, bc)
	if err != nil {
		log.Fatal(err)
	}

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

func newApp(c config.Config[conf.Bootstrap], bc *conf.Bootstrap) (*app.App, error) {
	stopTimeout := 30 * time.Second

	// graceful upgrade
	flip, err := tableflip.New(tableflip.Options{
		PIDFile:        bc.PidFile,
		UpgradeTimeout: stopTimeout,
	})
	if err != nil {
		return nil, err
	}

	// init cache
	st := storage.New(bc.Cache)

	// init upstream
	up := proxy.New(bc.Upstream)

	// access log + hot-reloadable knobs
	accessLog := mod.NewAccessLog(bc.Server.AccessLog)
	_ = c.Watch("logger", func(_ string, b *conf.Bootstrap) {
		if b.Logger != nil {
			log.SetLevel(b.Logger.Level)
		}
		if b.Server != nil && b.Server.AccessLog != nil {
			accessLog.SetEnabled(b.Server.AccessLog.Enabled)
		}
	})

	// transport servers
	servers := make([]transport.Server, 0, 2)

	ln, err := flip.Listen("tcp", bc.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", bc.Server.Addr, err)
	}
	servers = append(servers, server.NewServer(ln, bc, st, up, accessLog))

	if bc.Admin.Addr != "" {
		aln, err := flip.Listen("tcp", bc.Admin.Addr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", bc.Admin.Addr, err)
		}
		servers = append(servers, server.NewAdminServer(aln, bc.Admin, st))
	}

	return app.New(
		app.ID(id),
		app.Name(constants.AppName),
		app.Version(Version),
		app.StopTimeout(stopTimeout),
		app.Upgrader(flip),
		app.Server(servers...),
	), nil
}
