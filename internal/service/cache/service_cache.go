package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "GEFlip/pkg/cache"
)

// ServiceCache adapts the shared cache service to the byte-oriented
// interface handlers use for response caching. Backing it with a layered
// service keeps hot envelopes in process memory with Redis as the shared
// second level.
type ServiceCache struct {
	svc pkgcache.Service
}

func NewServiceCache(svc pkgcache.Service) *ServiceCache {
	return &ServiceCache{svc: svc}
}

func (s *ServiceCache) GetBytes(key string) ([]byte, bool, error) {
	var v string
	err := s.svc.Get(context.Background(), key, &v)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (s *ServiceCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return s.svc.Set(context.Background(), key, string(value), ttl)
}
