package blobstore

import (
	"context"
	"time"
)

// BlobInfo — одна сохранённая ссылка.
type BlobInfo struct {
	Ref     string
	ModTime time.Time
}

// Store — opaque-хранилище вложений. Save возвращает стабильную ссылку;
// перезаписи существующей ссылки не бывает. Ретраи — забота вызывающего.
type Store interface {
	Save(ctx context.Context, suggestedName string, data []byte) (string, error)
	List(ctx context.Context) ([]BlobInfo, error)
}
