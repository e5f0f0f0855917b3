package diskblob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/blobstore"
)

// DiskStore кладёт вложения в локальный каталог; ссылка — имя файла.
type DiskStore struct {
	dir string
}

func New(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create blob dir")
	}
	return &DiskStore{dir: dir}, nil
}

func (d *DiskStore) Save(ctx context.Context, suggestedName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "save blob")
	}

	base := filepath.Base(strings.TrimSpace(suggestedName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "attachment"
	}

	// O_EXCL: существующую ссылку не перезаписываем, подбираем свободное имя.
	name := base
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			ext := filepath.Ext(base)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), i, ext)
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "create blob file")
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", errors.Wrap(err, "write blob file")
		}
		if err := f.Close(); err != nil {
			return "", errors.Wrap(err, "close blob file")
		}
		return name, nil
	}
}

func (d *DiskStore) List(ctx context.Context) ([]blobstore.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "list blobs")
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read blob dir")
	}

	out := make([]blobstore.BlobInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, errors.Wrap(err, "stat blob")
		}
		out = append(out, blobstore.BlobInfo{Ref: e.Name(), ModTime: info.ModTime()})
	}
	return out, nil
}
