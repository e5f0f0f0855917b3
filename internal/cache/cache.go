package cache

import (
	"context"
	"time"
)

// BytesCache — best-effort байтовый кэш. Промах — не ошибка (ok=false).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
