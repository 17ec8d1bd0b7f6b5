package cache

import "time"

// BytesCache stores serialized API envelopes with a TTL. Handlers use it to
// replay hot responses (analysis, opportunities, predictions) without
// re-running the underlying scan.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
