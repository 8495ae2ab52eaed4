package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type requestInfoKey struct{}

// RequestInfo accumulates per-connection request facts for the access log.
type RequestInfo struct {
	StartAt     time.Time
	RequestID   string
	RemoteAddr  string
	Method      string
	URI         string
	Fingerprint string
	CacheStatus string
	StatusCode  int
	BytesSent   int64
	Upstream    string
}

// WithRequestInfo stamps a fresh RequestInfo onto ctx.
func WithRequestInfo(ctx context.Context, remoteAddr string) (context.Context, *RequestInfo) {
	info := &RequestInfo{
		StartAt:    time.Now(),
		RequestID:  uuid.NewString(),
		RemoteAddr: remoteAddr,
	}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// FromContext returns the RequestInfo carried by ctx, or an empty one.
func FromContext(ctx context.Context) *RequestInfo {
	if v, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		return v
	}
	return &RequestInfo{}
}
