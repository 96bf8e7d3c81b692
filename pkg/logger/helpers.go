package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NewRunID returns a time-ordered identifier for one harvest invocation
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ForRun returns base tagged with a run id and the query being harvested
func ForRun(base Logger, runID, query string) Logger {
	if base == nil {
		base = GetLogger()
	}
	return base.WithFields(map[string]interface{}{
		"run_id": runID,
		"query":  query,
	})
}

// LogPhase logs a phase transition of the orchestrator
func LogPhase(l Logger, phase string, downloads, target int) {
	l.InfoWithFields("Phase started", map[string]interface{}{
		"phase":     phase,
		"downloads": downloads,
		"target":    target,
	})
}

// LogURLVisit logs the terminal state of one referrer page
func LogURLVisit(l Logger, pageURL, state string, found, saved int, err error) {
	fields := map[string]interface{}{
		"url":          pageURL,
		"state":        state,
		"images_found": found,
		"images_saved": saved,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Referrer visit failed", fields)
		return
	}
	l.DebugWithFields("Referrer visited", fields)
}

// LogImageOutcome logs what happened to one candidate image
func LogImageOutcome(l Logger, imageURL, outcome string, d time.Duration, err error) {
	fields := map[string]interface{}{
		"image_url": imageURL,
		"outcome":   outcome,
		"duration":  d,
	}
	if err != nil {
		l.WithError(err).DebugWithFields("Image skipped", fields)
		return
	}
	l.DebugWithFields("Image processed", fields)
}

// LogSearch logs a completed search query
func LogSearch(l Logger, provider, query string, results int, d time.Duration) {
	l.InfoWithFields("Search completed", map[string]interface{}{
		"provider": provider,
		"search":   query,
		"results":  results,
		"duration": d,
	})
}

// LogMetrics logs performance metrics
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields("Performance metrics", fields)
}

// Percent formats part of total for progress fields
func Percent(part, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
