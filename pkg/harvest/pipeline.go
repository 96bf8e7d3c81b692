package harvest

import (
	"context"
	"sync/atomic"

	"picharvest/internal/downloader"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/fetch"
	"picharvest/pkg/logger"
	"picharvest/pkg/relevance"
	"picharvest/pkg/store"
)

// pipeline takes one candidate image from fetch to commit. It runs on the
// worker pool; all shared counters live in the Deduper or are atomic.
type pipeline struct {
	fetcher Fetcher
	scorer  Scorer
	limits  fetch.Limits
	dedup   *Deduper
	storage Storage
	logger  logger.Logger

	rejected   atomic.Int64
	failed     atomic.Int64
	unassessed atomic.Int64
}

func (p *pipeline) Process(ctx context.Context, job downloader.Job) downloader.Result {
	res := downloader.Result{Job: job}

	data, err := p.fetcher.Fetch(ctx, job.ImageURL)
	if err != nil {
		return p.fail(res, err)
	}

	img, err := fetch.Normalize(data, p.limits)
	if err != nil {
		return p.reject(res, err)
	}
	res.Fingerprint = img.Fingerprint
	res.Size = len(img.Data)

	if p.dedup.CheckSeen(ctx, img.Fingerprint) {
		res.Outcome = downloader.OutcomeDuplicate
		return res
	}

	in := relevance.Input{Image: img.Decoded, ImageURL: job.ImageURL, Query: job.Query}
	if img.Meta != nil {
		in.Copyright = firstNonEmpty(img.Meta.Copyright, img.Meta.Credit)
	}
	a, err := p.scorer.Score(ctx, in)
	switch {
	case errs.IsType(err, errs.ErrorTypeClassification):
		// the image already passed size validation, so keep it unscored
		p.unassessed.Add(1)
		p.logger.WithError(err).DebugWithFields("Classification unavailable, accepting", map[string]interface{}{
			"image_url": job.ImageURL,
		})
	case err != nil:
		return p.fail(res, err)
	case !a.Relevant:
		res.Score = a.Score
		return p.reject(res, errs.NewValidation("below relevance threshold", nil))
	}
	res.Score = a.Score

	path, err := p.storage.Save(img.Data, img.Ext)
	if err != nil {
		return p.fail(res, errs.NewStorage("saving image", err))
	}

	contentType := string(a.ContentType)
	if contentType == "" {
		contentType = string(relevance.Unclassified)
	}
	outcome, err := p.dedup.Commit(ctx, &store.Image{
		SourceURLID:    job.SourceURLID,
		ImageURL:       job.ImageURL,
		Fingerprint:    img.Fingerprint,
		PerceptualHash: img.PerceptualHash,
		FilePath:       path,
		FileSize:       int64(len(img.Data)),
		Width:          img.Width,
		Height:         img.Height,
		IsRelevant:     true,
		RelevanceScore: a.Score,
		ContentType:    contentType,
	})
	res.Outcome = outcome
	res.Error = err
	switch outcome {
	case downloader.OutcomeSaved:
		res.Path = path
	case downloader.OutcomeFailed:
		p.failed.Add(1)
	}
	return res
}

func (p *pipeline) fail(res downloader.Result, err error) downloader.Result {
	p.failed.Add(1)
	res.Outcome = downloader.OutcomeFailed
	res.Error = err
	return res
}

func (p *pipeline) reject(res downloader.Result, err error) downloader.Result {
	p.rejected.Add(1)
	res.Outcome = downloader.OutcomeRejected
	res.Error = err
	return res
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
