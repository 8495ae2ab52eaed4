package cache

import (
	"github.com/omalloc/courier/api/defined/v1/cache/object"
)

// Object is a pinned view of a resident cache entry. Bytes stays valid
// until Release; Release must be called exactly once.
type Object interface {
	// Bytes is the response payload, borrowed from the cache.
	Bytes() []byte
	// Size is the payload length in bytes.
	Size() int64
	// Release unpins the entry. After the last release of an entry that
	// was evicted mid-read, its memory is reclaimed.
	Release()
}

// Cache is a fingerprint-keyed object store with per-entry read pinning,
// a global recency order and byte-budgeted eviction.
type Cache interface {
	// Lookup pins and returns the entry on hit, promoting it to
	// most-recently-used. The caller owns exactly one Release per hit.
	Lookup(fp object.Fingerprint) (Object, bool)

	// Store publishes an owned copy of body under fp, evicting from the
	// least-recently-used end to fit the budget. If fp is already
	// resident the call is a no-op (first writer wins). Returns whether
	// the entry is resident afterwards.
	Store(fp object.Fingerprint, body []byte) bool

	// Remove drops fp from the cache if resident. Pinned readers keep
	// their view until they release it.
	Remove(fp object.Fingerprint) bool

	// Used is the byte total of resident entries.
	Used() int64
	// Objects is the resident entry count.
	Objects() int

	Close() error
}
