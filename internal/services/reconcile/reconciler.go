package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rafiff23/Mahligai-GPS/internal/blobstore"
)

// Reconciler ищет осиротевшие вложения: блобы, на которые не ссылается ни
// одна строка леджера. Такие появляются штатно — вложение уже загружено,
// а вставка строки упала, отката блобов у write-пути нет. Только репортит,
// ничего не удаляет.

type Repository interface {
	ListAttachmentRefs(ctx context.Context) ([]string, error)
}

type Reconciler struct {
	repo  Repository
	blobs blobstore.Store

	scanInterval time.Duration
	// Блобы моложе minAge не считаем сиротами: их строка может быть
	// ещё в полёте.
	minAge time.Duration

	triggerCh chan struct{}

	startedAtUnixNano int64
	lastScanUnixNano  atomic.Int64
	totalScans        atomic.Int64
	totalOrphans      atomic.Int64
	lastOrphansMu     sync.Mutex
	lastOrphans       []string
	lastError         string
}

func New(repo Repository, blobs blobstore.Store) *Reconciler {
	return &Reconciler{
		repo:              repo,
		blobs:             blobs,
		scanInterval:      10 * time.Minute,
		minAge:            30 * time.Minute,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Reconciler) WithSettings(scanInterval, minAge time.Duration) *Reconciler {
	if scanInterval > 0 {
		r.scanInterval = scanInterval
	}
	if minAge > 0 {
		r.minAge = minAge
	}
	return r
}

// Trigger forces an immediate scan (best-effort, non-blocking).
func (r *Reconciler) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt    time.Time  `json:"startedAt"`
	LastScanAt   *time.Time `json:"lastScanAt,omitempty"`
	TotalScans   int64      `json:"totalScans"`
	TotalOrphans int64      `json:"totalOrphans"`
	LastOrphans  []string   `json:"lastOrphans,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

func (r *Reconciler) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalScans:   r.totalScans.Load(),
		TotalOrphans: r.totalOrphans.Load(),
	}
	if n := r.lastScanUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastScanAt = &t
	}
	r.lastOrphansMu.Lock()
	st.LastOrphans = append([]string{}, r.lastOrphans...)
	st.LastError = r.lastError
	r.lastOrphansMu.Unlock()
	return st
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.scanInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	now := time.Now()
	r.lastScanUnixNano.Store(now.UTC().UnixNano())
	r.totalScans.Add(1)

	orphans, err := r.ScanOnce(ctx, now)
	r.lastOrphansMu.Lock()
	defer r.lastOrphansMu.Unlock()
	if err != nil {
		r.lastError = err.Error()
		slog.Error("reconcile scan", "error", err.Error())
		return
	}
	r.lastError = ""
	r.lastOrphans = orphans
	r.totalOrphans.Add(int64(len(orphans)))
	if len(orphans) > 0 {
		slog.Warn("orphaned attachments found", "count", len(orphans), "refs", orphans)
	}
}

// ScanOnce сравнивает содержимое blob store со ссылками в леджере и
// возвращает сирот старше minAge.
func (r *Reconciler) ScanOnce(ctx context.Context, now time.Time) ([]string, error) {
	refs, err := r.repo.ListAttachmentRefs(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		referenced[ref] = struct{}{}
	}

	blobs, err := r.blobs.List(ctx)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, b := range blobs {
		if _, ok := referenced[b.Ref]; ok {
			continue
		}
		if now.Sub(b.ModTime) < r.minAge {
			continue
		}
		orphans = append(orphans, b.Ref)
	}
	return orphans, nil
}
