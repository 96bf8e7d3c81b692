// Package logger provides the structured logging interface used across picharvest.
//
// It wraps zerolog behind a small Logger interface with field helpers:
//
//	log := logger.ForRun(logger.GetLogger(), logger.NewRunID(), "ada lovelace")
//	log.WithField("phase", "base").Info("Phase started")
//	log.WithError(err).WarnWithFields("Referrer visit failed", map[string]interface{}{
//	    "url": pageURL,
//	})
//
// Console output is colored; setting logging.file adds a JSON file sink.
// Tests use NewNopLogger or NewTestLogger, which captures messages.
package logger
