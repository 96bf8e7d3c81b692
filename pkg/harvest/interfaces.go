package harvest

import (
	"context"

	"picharvest/internal/downloader"
	"picharvest/pkg/relevance"
	"picharvest/pkg/store"
)

// MetadataStore is the durable record the engine writes to
type MetadataStore interface {
	CreateSession(ctx context.Context, query string) (int64, error)
	SetSessionTotal(ctx context.Context, sessionID int64, total int) error
	StoreURLs(ctx context.Context, sessionID int64, urls []string) ([]store.SourceURL, error)
	UnvisitedURLs(ctx context.Context, sessionID int64, limit int) ([]store.SourceURL, error)
	MarkVisited(ctx context.Context, id int64, imagesFound int, errMsg string) (bool, error)
	StoreImage(ctx context.Context, img *store.Image) (int64, error)
	HasFingerprint(ctx context.Context, fp string) (bool, error)
	Fingerprints(ctx context.Context) ([]string, error)
}

// Fetcher downloads raw image bytes
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Scorer is the two-stage relevance filter
type Scorer interface {
	Prefilter(imageURL string) bool
	Score(ctx context.Context, in relevance.Input) (relevance.Assessment, error)
}

// VariationStrategy decides when and how to widen the search
type VariationStrategy interface {
	ShouldGenerateVariations(current, target int) bool
	GenerateVariations(base string) []string
}

// Storage saves image files into the subject folder
type Storage interface {
	Save(data []byte, ext string) (string, error)
	Remove(path string) error
}

// Observer receives progress as a run advances. Calls may come from
// several goroutines at once.
type Observer interface {
	PhaseStarted(phase string, downloads, target int)
	ImageDone(r downloader.Result)
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(string, int, int) {}
func (nopObserver) ImageDone(downloader.Result)   {}
