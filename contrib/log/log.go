package log

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omalloc/courier/conf"
)

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	global = newLogger(nil, false).Sugar()
)

// Init rebuilds the global logger from config. Called once at startup;
// config reload only adjusts the level, through SetLevel.
func Init(c *conf.Logger, verbose bool) {
	if c == nil {
		c = &conf.Logger{}
	}
	SetLevel(c.Level)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}
	global = newLogger(c, c.Caller).Sugar()
}

// SetLevel adjusts the global level in place; safe under concurrency.
func SetLevel(s string) {
	if s == "" {
		return
	}
	if l, err := zapcore.ParseLevel(s); err == nil {
		level.SetLevel(l)
	}
}

func newLogger(c *conf.Logger, caller bool) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder

	sink := zapcore.AddSync(os.Stderr)
	if c != nil && c.Path != "" {
		_ = os.MkdirAll(filepath.Dir(c.Path), 0o755)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.Path,
			MaxSize:    c.MaxSize,
			MaxAge:     c.MaxAge,
			MaxBackups: c.MaxBackups,
			LocalTime:  true,
			Compress:   c.Compress,
		})
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), sink, level)

	opts := []zap.Option{}
	if caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	return zap.New(core, opts...)
}

func Debug(args ...any) { global.Debug(args...) }
func Info(args ...any)  { global.Info(args...) }
func Warn(args ...any)  { global.Warn(args...) }
func Error(args ...any) { global.Error(args...) }
func Fatal(args ...any) { global.Fatal(args...) }

func Debugf(format string, args ...any) { global.Debugf(format, args...) }
func Infof(format string, args ...any)  { global.Infof(format, args...) }
func Warnf(format string, args ...any)  { global.Warnf(format, args...) }
func Errorf(format string, args ...any) { global.Errorf(format, args...) }
func Fatalf(format string, args ...any) { global.Fatalf(format, args...) }

// Helper is a logger with pre-bound fields.
type Helper struct {
	s *zap.SugaredLogger
}

// NewHelper returns a helper bound to key/value pairs.
func NewHelper(kv ...any) *Helper {
	return &Helper{s: global.With(kv...)}
}

func (h *Helper) Debugf(format string, args ...any) { h.s.Debugf(format, args...) }
func (h *Helper) Infof(format string, args ...any)  { h.s.Infof(format, args...) }
func (h *Helper) Warnf(format string, args ...any)  { h.s.Warnf(format, args...) }
func (h *Helper) Errorf(format string, args ...any) { h.s.Errorf(format, args...) }

type ctxKey struct{}

// WithContext stamps a request id onto ctx for Context to pick up.
func WithContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// Context returns a helper carrying the request id found in ctx, if any.
func Context(ctx context.Context) *Helper {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return NewHelper("request_id", id)
	}
	return &Helper{s: global}
}
