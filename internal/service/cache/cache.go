package cache

import "time"

// BytesCache is the narrow cache surface handlers depend on: raw bytes
// in and out with a per-key TTL. TTLCache backs it in-process when Redis
// is disabled; ServiceAdapter backs it with the layered Redis cache.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
