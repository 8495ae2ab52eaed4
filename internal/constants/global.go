package constants

const AppName = "courier"

// UserAgent is the fixed identifier sent on every upstream request in
// place of whatever the client supplied.
const UserAgent = "Mozilla/5.0 " +
	"(X11; Linux x86_64; rv:10.0.3) " +
	"Gecko/20120305 Firefox/10.0.3"

// define proxy protocol limits
const (
	MaxObjectBytes  = 102400
	MaxCacheBytes   = 1049000
	LineBufferBytes = 8192

	HostLen = 256
	PortLen = 8

	DefaultPort = "80"
	DefaultPath = "/"
)

// cache status values written to the access log
const (
	CacheStatusHit  = "HIT"
	CacheStatusMiss = "MISS"
	CacheStatusSkip = "SKIP"
)
