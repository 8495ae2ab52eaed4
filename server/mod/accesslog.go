package mod

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/metrics"
	"github.com/omalloc/courier/pkg/encoding"
)

// AccessLog writes one line per served request. Disabled it is a no-op
// sink, so callers never branch.
type AccessLog struct {
	enabled atomic.Bool
	w       *zap.Logger
}

type accessRecord struct {
	Time        string `json:"ts"`
	RequestID   string `json:"request_id"`
	RemoteAddr  string `json:"remote_addr"`
	Method      string `json:"method"`
	URI         string `json:"uri"`
	Fingerprint string `json:"fingerprint"`
	CacheStatus string `json:"cache"`
	Status      int    `json:"status"`
	BytesSent   int64  `json:"bytes_sent"`
	Upstream    string `json:"upstream,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

func NewAccessLog(opt *conf.ServerAccessLog) *AccessLog {
	a := &AccessLog{}
	if opt == nil || !opt.Enabled {
		return a
	}

	a.enabled.Store(true)
	a.w = newAccessWriter(opt.Path)
	return a
}

// SetEnabled flips logging at runtime (config reload).
func (a *AccessLog) SetEnabled(on bool) {
	if on && a.w == nil {
		// was never configured with a writer; stay off
		return
	}
	a.enabled.Store(on)
}

func (a *AccessLog) Write(info *metrics.RequestInfo) {
	if a == nil || !a.enabled.Load() {
		return
	}

	rec := accessRecord{
		Time:        info.StartAt.Format(time.RFC3339),
		RequestID:   info.RequestID,
		RemoteAddr:  info.RemoteAddr,
		Method:      info.Method,
		URI:         info.URI,
		Fingerprint: info.Fingerprint,
		CacheStatus: info.CacheStatus,
		Status:      info.StatusCode,
		BytesSent:   info.BytesSent,
		Upstream:    info.Upstream,
		DurationMs:  time.Since(info.StartAt).Milliseconds(),
	}

	payload, err := encoding.GetCodec().Marshal(rec)
	if err != nil {
		return
	}
	a.w.Info(string(payload))
}

func newAccessWriter(path string) *zap.Logger {
	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stdout)
	if path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     1,
			LocalTime:  true,
			Compress:   false,
		})
	}

	cfg := zap.NewProductionConfig().EncoderConfig
	cfg.ConsoleSeparator = " "
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {}
	cfg.EncodeLevel = func(_ zapcore.Level, _ zapcore.PrimitiveArrayEncoder) {}

	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		sink,
		zapcore.InfoLevel,
	))
}
