package harvest

import (
	"context"
	"errors"
	"sync"

	"picharvest/internal/downloader"
	"picharvest/pkg/store"
)

// Deduper owns the fingerprint set and the download and duplicate counters.
// Every check-then-record sequence runs under one mutex, so of two
// submissions with the same fingerprint the first to commit wins.
type Deduper struct {
	mu         sync.Mutex
	seen       map[string]bool
	downloads  int
	duplicates int
	hardCap    int

	store   MetadataStore
	storage Storage
}

// NewDeduper seeds the fingerprint set from the store
func NewDeduper(ctx context.Context, ms MetadataStore, st Storage, hardCap int) (*Deduper, error) {
	fps, err := ms.Fingerprints(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(fps))
	for _, fp := range fps {
		seen[fp] = true
	}
	return &Deduper{seen: seen, hardCap: hardCap, store: ms, storage: st}, nil
}

// CheckSeen counts fp as a duplicate and returns true if it is already known,
// in this run or in the store. It lets a worker skip saving a file that
// would only be rolled back. A failed lookup reports false; Commit still
// has the unique index behind it.
func (d *Deduper) CheckSeen(ctx context.Context, fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.seen[fp] {
		has, err := d.store.HasFingerprint(ctx, fp)
		if err != nil || !has {
			return false
		}
		d.seen[fp] = true
	}
	d.duplicates++
	return true
}

// Commit records a saved file. A known fingerprint, a full run or a failed
// insert removes the file again; only OutcomeSaved leaves it in place.
func (d *Deduper) Commit(ctx context.Context, img *store.Image) (downloader.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen[img.Fingerprint] {
		d.duplicates++
		return downloader.OutcomeDuplicate, d.rollback(img.FilePath)
	}
	if d.downloads >= d.hardCap {
		return downloader.OutcomeSkipped, d.rollback(img.FilePath)
	}

	if _, err := d.store.StoreImage(ctx, img); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			d.seen[img.Fingerprint] = true
			d.duplicates++
			return downloader.OutcomeDuplicate, d.rollback(img.FilePath)
		}
		return downloader.OutcomeFailed, errors.Join(err, d.rollback(img.FilePath))
	}

	d.seen[img.Fingerprint] = true
	d.downloads++
	return downloader.OutcomeSaved, nil
}

func (d *Deduper) rollback(path string) error {
	if path == "" {
		return nil
	}
	return d.storage.Remove(path)
}

// Downloads is the number of images saved in this run
func (d *Deduper) Downloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.downloads
}

// Duplicates is the number of duplicate skips in this run
func (d *Deduper) Duplicates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duplicates
}

// Known is the size of the fingerprint set
func (d *Deduper) Known() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
