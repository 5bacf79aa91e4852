package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "QuantLab/pkg/cache"
)

// ServiceAdapter exposes a pkg/cache Service as a BytesCache so handlers
// can swap the in-memory TTL cache for the layered Redis cache without
// changing call sites.
type ServiceAdapter struct {
	svc pkgcache.Service
}

func NewServiceAdapter(svc pkgcache.Service) *ServiceAdapter {
	return &ServiceAdapter{svc: svc}
}

// Values travel as strings so both the memory and the Redis layer take
// their raw fast path instead of JSON-encoding the bytes.
func (a *ServiceAdapter) GetBytes(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var s string
	if err := a.svc.Get(ctx, key, &s); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(s), true, nil
}

func (a *ServiceAdapter) SetBytes(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return a.svc.Set(ctx, key, string(value), ttl)
}

var _ BytesCache = (*ServiceAdapter)(nil)
