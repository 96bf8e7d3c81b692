package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"picharvest/internal/downloader"
	"picharvest/pkg/config"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/extract"
	"picharvest/pkg/fetch"
	"picharvest/pkg/logger"
	"picharvest/pkg/search"
	"picharvest/pkg/storage"
	"picharvest/pkg/store"
)

// Deps are the collaborators an Engine drives
type Deps struct {
	Search   search.Provider
	Extract  extract.Extractor
	Fetch    Fetcher
	Filter   Scorer
	Store    MetadataStore
	Strategy VariationStrategy
	Logger   logger.Logger
	// Observer is optional
	Observer Observer
}

// Engine runs the phased harvest workflow
type Engine struct {
	cfg         config.Config
	deps        Deps
	prioritizer *Prioritizer
	logger      logger.Logger
}

// NewEngine copies cfg; later changes to the caller's value do not affect the engine
func NewEngine(cfg *config.Config, d Deps) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch {
	case d.Search == nil:
		return nil, fmt.Errorf("search provider is required")
	case d.Extract == nil:
		return nil, fmt.Errorf("extractor is required")
	case d.Fetch == nil:
		return nil, fmt.Errorf("fetcher is required")
	case d.Filter == nil:
		return nil, fmt.Errorf("relevance filter is required")
	case d.Store == nil:
		return nil, fmt.Errorf("metadata store is required")
	case d.Strategy == nil:
		return nil, fmt.Errorf("search strategy is required")
	}
	if d.Logger == nil {
		d.Logger = logger.GetLogger()
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	return &Engine{
		cfg:         *cfg,
		deps:        d,
		prioritizer: NewPrioritizer(cfg.Domains),
		logger:      d.Logger,
	}, nil
}

// run is the state of one Run call
type run struct {
	e         *Engine
	query     string
	target    int
	tier      config.TierSettings
	sessionID int64
	hardCap   int

	dedup *Deduper
	pipe  *pipeline
	pool  *downloader.WorkerPool
	log   logger.Logger

	discovered  int
	visited     atomic.Int64
	urlErrors   atomic.Int64
	prefiltered atomic.Int64
}

// Run harvests up to target new images of query. Per-URL and per-image
// failures are folded into the result; an error is returned only for bad
// input, an unusable folder or store, or cancellation.
func (e *Engine) Run(ctx context.Context, query string, target int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.NewValidation("query is required", nil)
	}
	if target <= 0 {
		return nil, errs.NewValidation(fmt.Sprintf("target must be positive, got %d", target), nil)
	}

	start := time.Now()
	runID := logger.NewRunID()
	log := logger.ForRun(e.logger, runID, query)
	tier := e.cfg.Tiers.For(target)

	folder := filepath.Join(e.cfg.Output.BaseDirectory, storage.SubjectName(query))
	files, err := storage.NewManager(folder)
	if err != nil {
		return nil, errs.NewStorage("preparing subject folder", err)
	}

	sid, err := e.deps.Store.CreateSession(ctx, query)
	if err != nil {
		return nil, errs.NewStorage("creating session", err)
	}

	hardCap := e.cfg.Orchestrator.HardCap(target)
	dedup, err := NewDeduper(ctx, e.deps.Store, files, hardCap)
	if err != nil {
		return nil, errs.NewStorage("loading fingerprints", err)
	}

	r := &run{
		e:         e,
		query:     query,
		target:    target,
		tier:      tier,
		sessionID: sid,
		hardCap:   hardCap,
		dedup:     dedup,
		log:       log,
	}
	r.pipe = &pipeline{
		fetcher: e.deps.Fetch,
		scorer:  e.deps.Filter,
		limits: fetch.Limits{
			MinWidth:    e.cfg.Download.MinWidth,
			MinHeight:   e.cfg.Download.MinHeight,
			MinBytes:    e.cfg.Download.MinBytes,
			MaxBytes:    e.cfg.Download.MaxBytes,
			MaxPixels:   e.cfg.Download.MaxPixels,
			JPEGQuality: e.cfg.Download.JPEGQuality,
		},
		dedup:   dedup,
		storage: files,
		logger:  log,
	}
	r.pool = downloader.NewWorkerPool(e.cfg.Download.MaxWorkers, r.pipe, log)
	r.pool.Start()
	defer r.pool.Stop()

	log.InfoWithFields("Harvest started", map[string]interface{}{
		"target":       target,
		"tier":         tier.Name,
		"hard_cap":     hardCap,
		"folder":       files.Dir(),
		"next_ordinal": files.Next(),
		"session_id":   sid,
		"known_images": dedup.Known(),
	})

	res := &Result{
		RunID:     runID,
		Query:     query,
		Target:    target,
		SessionID: sid,
		Folder:    files.Dir(),
	}

	runErr := r.phases(ctx, res)

	if err := e.deps.Store.SetSessionTotal(context.WithoutCancel(ctx), sid, r.discovered); err != nil {
		log.WithError(err).Warn("Failed to record session URL total")
	}
	r.fill(res)
	res.Elapsed = time.Since(start)
	res.summarize()

	metrics := map[string]interface{}{
		"downloads":   res.TotalDownloads,
		"duplicates":  res.SkippedDuplicates,
		"rejected":    res.Rejected,
		"failed":      res.Failed,
		"visited":     res.URLsVisited,
		"progress":    logger.Percent(res.TotalDownloads, target),
		"elapsed":     res.Elapsed,
		"summary":     res.Message,
		"variations":  len(res.Variations),
		"url_errors":  res.URLErrors,
		"prefiltered": res.Prefiltered,
	}
	if n, err := files.Count(); err == nil {
		metrics["folder_files"] = n
	}
	logger.LogMetrics(log, "harvest", metrics)
	return res, runErr
}

func (r *run) phases(ctx context.Context, res *Result) error {
	e := r.e
	orch := e.cfg.Orchestrator

	logger.LogPhase(r.log, PhaseBase, 0, r.target)
	urls := r.search(ctx, r.query)
	if len(urls) == 0 {
		r.log.Warn("Base search found no referrer URLs")
		res.Message = MessageNoURLs
		return ctx.Err()
	}
	if limit := r.tier.AdmissionCap(r.target); len(urls) > limit {
		urls = urls[:limit]
	}
	if _, err := r.admit(ctx, urls); err != nil {
		return err
	}

	err := r.phase(ctx, res, PhaseBase, func() error {
		pending, err := e.deps.Store.UnvisitedURLs(ctx, r.sessionID, r.tier.UnvisitedLimit)
		if err != nil {
			return errs.NewStorage("loading unvisited URLs", err)
		}
		r.processURLs(ctx, pending, r.target)
		return nil
	})
	if err != nil {
		return err
	}

	if orch.EnableSweep && r.dedup.Downloads() < r.target {
		err := r.phase(ctx, res, PhaseRemaining, func() error {
			pending, err := e.deps.Store.UnvisitedURLs(ctx, r.sessionID, orch.SweepLimit)
			if err != nil {
				return errs.NewStorage("loading unvisited URLs", err)
			}
			r.processURLs(ctx, pending, r.target)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if orch.EnableVariations && e.deps.Strategy.ShouldGenerateVariations(r.dedup.Downloads(), r.target) {
		stop := orch.VariationStop(r.target)
		err := r.phase(ctx, res, PhaseVariations, func() error {
			for _, v := range e.deps.Strategy.GenerateVariations(r.query) {
				if r.dedup.Downloads() >= stop || ctx.Err() != nil {
					break
				}
				res.Variations = append(res.Variations, v)
				found := r.search(ctx, v)
				if len(found) > r.tier.VariationSubset {
					found = found[:r.tier.VariationSubset]
				}
				admitted, err := r.admit(ctx, found)
				if err != nil {
					return err
				}
				r.log.InfoWithFields("Processing variation", map[string]interface{}{
					"variation": v,
					"new_urls":  len(admitted),
					"downloads": r.dedup.Downloads(),
				})
				r.processURLs(ctx, admitted, stop)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// phase runs fn and records what it added
func (r *run) phase(ctx context.Context, res *Result, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.LogPhase(r.log, name, r.dedup.Downloads(), r.target)
	r.e.deps.Observer.PhaseStarted(name, r.dedup.Downloads(), r.target)
	downloads, visited := r.dedup.Downloads(), r.visited.Load()
	err := fn()
	pc := PhaseCount{
		Name:        name,
		Downloads:   r.dedup.Downloads() - downloads,
		URLsVisited: int(r.visited.Load() - visited),
	}
	res.Phases = append(res.Phases, pc)
	r.log.InfoWithFields("Phase finished", map[string]interface{}{
		"phase":        name,
		"downloads":    pc.Downloads,
		"urls_visited": pc.URLsVisited,
		"total":        r.dedup.Downloads(),
	})
	return err
}

// search runs one query; a failed search counts as no results
func (r *run) search(ctx context.Context, q string) []string {
	raw, err := r.e.deps.Search.Search(ctx, q)
	if err != nil {
		r.log.WithError(err).WarnWithFields("Search failed", map[string]interface{}{"search": q})
		return nil
	}
	return search.FilterReferrers(raw, r.e.cfg.Search.SkipDomains)
}

// admit persists URLs and returns the ones that are new to the session
func (r *run) admit(ctx context.Context, urls []string) ([]store.SourceURL, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	rows, err := r.e.deps.Store.StoreURLs(ctx, r.sessionID, urls)
	if err != nil {
		return nil, errs.NewStorage("storing referrer URLs", err)
	}
	r.discovered += len(rows)
	return rows, nil
}

// processURLs visits urls in priority order, one batch at a time. No batch
// starts once downloads reach stop or the hard cap; a running batch finishes.
func (r *run) processURLs(ctx context.Context, urls []store.SourceURL, stop int) {
	stop = min(stop, r.hardCap)
	ordered := r.e.prioritizer.Order(urls)
	size := max(r.tier.BatchSize, 1)

	for start := 0; start < len(ordered); start += size {
		if r.dedup.Downloads() >= stop || ctx.Err() != nil {
			return
		}
		if start > 0 && !sleep(ctx, r.e.cfg.Orchestrator.BatchDelay) {
			return
		}
		batch := ordered[start:min(start+size, len(ordered))]

		var g errgroup.Group
		g.SetLimit(max(r.e.cfg.Extract.PageConcurrency, 1))
		for _, su := range batch {
			if r.dedup.Downloads() >= stop {
				break
			}
			g.Go(func() error {
				r.visit(ctx, su)
				return nil
			})
		}
		_ = g.Wait()

		r.log.DebugWithFields("Batch finished", map[string]interface{}{
			"batch_start": start,
			"batch_size":  len(batch),
			"downloads":   r.dedup.Downloads(),
			"stop":        stop,
		})
	}
}

// visit takes one referrer from Unvisited to Visited, whatever happens on the page
func (r *run) visit(ctx context.Context, su store.SourceURL) {
	e := r.e
	pageCtx := ctx
	if e.cfg.Extract.PageTimeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, e.cfg.Extract.PageTimeout)
		defer cancel()
	}

	found, err := e.deps.Extract.Extract(pageCtx, su.URL, e.prioritizer.Settle(su.Domain))
	if err != nil {
		r.finish(ctx, su, 0, 0, err.Error(), err)
		return
	}
	if len(found) == 0 {
		r.finish(ctx, su, 0, 0, "No images found", nil)
		return
	}

	jobs := make([]downloader.Job, 0, len(found))
	for _, u := range found {
		if !e.deps.Filter.Prefilter(u) {
			r.prefiltered.Add(1)
			continue
		}
		jobs = append(jobs, downloader.Job{
			ImageURL:    u,
			SourceURLID: su.ID,
			PageURL:     su.URL,
			Query:       r.query,
		})
	}

	results, err := r.pool.Process(ctx, jobs)
	if err != nil {
		r.finish(ctx, su, len(found), 0, err.Error(), err)
		return
	}
	saved := 0
	for _, res := range results {
		logger.LogImageOutcome(r.log, res.Job.ImageURL, string(res.Outcome), res.Duration, res.Error)
		e.deps.Observer.ImageDone(res)
		if res.Outcome == downloader.OutcomeSaved {
			saved++
		}
	}
	r.finish(ctx, su, len(found), saved, "", nil)
}

// finish records found, the candidates the page offered, on the URL row;
// saved only goes to the log
func (r *run) finish(ctx context.Context, su store.SourceURL, found, saved int, errMsg string, err error) {
	state := "images_found"
	switch {
	case err != nil:
		state = "error"
		r.urlErrors.Add(1)
	case errMsg != "":
		state = "no_images"
	}
	logger.LogURLVisit(r.log, su.URL, state, found, saved, err)

	// the visit is recorded even when the run is being cancelled
	changed, merr := r.e.deps.Store.MarkVisited(context.WithoutCancel(ctx), su.ID, found, errMsg)
	if merr != nil {
		r.log.WithError(merr).WarnWithFields("Failed to mark URL visited", map[string]interface{}{"url": su.URL})
		return
	}
	if changed {
		r.visited.Add(1)
	}
}

func (r *run) fill(res *Result) {
	res.TotalDownloads = r.dedup.Downloads()
	res.SkippedDuplicates = r.dedup.Duplicates()
	res.Rejected = int(r.pipe.rejected.Load())
	res.Failed = int(r.pipe.failed.Load())
	res.Unclassified = int(r.pipe.unassessed.Load())
	res.Prefiltered = int(r.prefiltered.Load())
	res.URLsDiscovered = r.discovered
	res.URLsVisited = int(r.visited.Load())
	res.URLErrors = int(r.urlErrors.Load())
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
