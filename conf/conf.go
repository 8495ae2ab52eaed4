package conf

import (
	"time"

	"github.com/omalloc/courier/internal/constants"
)

type Bootstrap struct {
	Hostname string    `json:"hostname" yaml:"hostname"`
	PidFile  string    `json:"pidfile" yaml:"pidfile"`
	Logger   *Logger   `json:"logger" yaml:"logger"`
	Server   *Server   `json:"server" yaml:"server"`
	Admin    *Admin    `json:"admin" yaml:"admin"`
	Cache    *Cache    `json:"cache" yaml:"cache"`
	Upstream *Upstream `json:"upstream" yaml:"upstream"`
}

type Logger struct {
	Level      string `json:"level" yaml:"level"`
	Path       string `json:"path" yaml:"path"`
	Caller     bool   `json:"caller" yaml:"caller"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type Server struct {
	// Addr is filled from the positional port argument; the config file
	// cannot override it.
	Addr      string           `json:"-" yaml:"-"`
	AccessLog *ServerAccessLog `json:"access_log" yaml:"access_log"`
}

type ServerAccessLog struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type Admin struct {
	Addr  string      `json:"addr" yaml:"addr"`
	PProf *AdminPProf `json:"pprof" yaml:"pprof"`
}

type AdminPProf struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type Cache struct {
	MaxObjectBytes  int64 `json:"max_object_bytes" yaml:"max_object_bytes"`
	MaxCacheBytes   int64 `json:"max_cache_bytes" yaml:"max_cache_bytes"`
	LineBufferBytes int   `json:"line_buffer_bytes" yaml:"line_buffer_bytes"`
}

type Upstream struct {
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	// UserAgent overrides the baked-in identifier. Leave empty outside of
	// tests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Default returns the baseline configuration merged under whatever the
// config file supplies.
func Default() *Bootstrap {
	return &Bootstrap{
		Logger: &Logger{
			Level:      "info",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		},
		Server: &Server{
			AccessLog: &ServerAccessLog{},
		},
		Admin: &Admin{
			PProf: &AdminPProf{},
		},
		Cache: &Cache{
			MaxObjectBytes:  constants.MaxObjectBytes,
			MaxCacheBytes:   constants.MaxCacheBytes,
			LineBufferBytes: constants.LineBufferBytes,
		},
		Upstream: &Upstream{
			DialTimeout: 30 * time.Second,
		},
	}
}
