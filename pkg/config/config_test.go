package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "google", cfg.Search.Provider)
	assert.Contains(t, cfg.Search.SkipDomains, "pinterest.")
	assert.Equal(t, 100, cfg.Orchestrator.MaxImages)
	assert.Equal(t, 8, cfg.Download.MaxWorkers)
	assert.Equal(t, 15*time.Second, cfg.Download.Timeout)
	assert.Equal(t, 3, cfg.Download.RetryAttempts)
	assert.Equal(t, 150, cfg.Download.MinWidth)
	assert.Equal(t, int64(8000), cfg.Download.MinBytes)
	assert.Equal(t, 95, cfg.Download.JPEGQuality)
	assert.Equal(t, int64(40_000_000), cfg.Download.MaxPixels)
	assert.Equal(t, 0.4, cfg.Relevance.Threshold)
	assert.Equal(t, 1.2, cfg.Orchestrator.OverageRatio)
	assert.Equal(t, 1.1, cfg.Orchestrator.VariationOverage)
	assert.Equal(t, 50, cfg.Orchestrator.SweepLimit)
	assert.Equal(t, 300*time.Millisecond, cfg.Orchestrator.BatchDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Domains.FastSettle)
	assert.Equal(t, 800*time.Millisecond, cfg.Domains.SlowSettle)

	require.NoError(t, cfg.Validate())
}

func TestTierSelection(t *testing.T) {
	tiers := DefaultConfig().Tiers

	tests := []struct {
		target    int
		name      string
		batch     int
		threshold int
		cap       int
	}{
		{target: 5, name: "small", batch: 10, threshold: 3, cap: 10},
		{target: 20, name: "small", batch: 10, threshold: 3, cap: 40},
		{target: 21, name: "medium", batch: 15, threshold: 5, cap: 63},
		{target: 10, name: "small", batch: 10, threshold: 3, cap: 20},
		{target: 100, name: "medium", batch: 15, threshold: 5, cap: 300},
		{target: 101, name: "large", batch: 25, threshold: 10, cap: 404},
		{target: 30, name: "medium", batch: 15, threshold: 5, cap: 90},
		{target: 200, name: "large", batch: 25, threshold: 10, cap: 800},
	}

	for _, tt := range tests {
		tier := tiers.For(tt.target)
		assert.Equal(t, tt.name, tier.Name, "target %d", tt.target)
		assert.Equal(t, tt.batch, tier.BatchSize, "target %d", tt.target)
		assert.Equal(t, tt.threshold, tier.VariationThreshold, "target %d", tt.target)
		assert.Equal(t, tt.cap, tier.AdmissionCap(tt.target), "target %d", tt.target)
	}

	// medium floor wins for mid-size targets
	assert.Equal(t, 50, tiers.For(21).AdmissionCap(1))
}

func TestOverageThresholds(t *testing.T) {
	o := DefaultConfig().Orchestrator

	assert.Equal(t, 12, o.HardCap(10))
	assert.Equal(t, 11, o.VariationStop(10))
	assert.Equal(t, 240, o.HardCap(200))
	assert.Equal(t, 220, o.VariationStop(200))
	assert.Equal(t, 1, o.HardCap(1))
	assert.Equal(t, 2, o.VariationStop(1))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PICHARVEST_PROVIDER", "searxng")
	t.Setenv("PICHARVEST_SEARXNG_URL", "http://localhost:8888")
	t.Setenv("PICHARVEST_MAX_WORKERS", "4")
	t.Setenv("PICHARVEST_MAX_IMAGES", "40")
	t.Setenv("PICHARVEST_RELEVANCE_THRESHOLD", "0.55")
	t.Setenv("PICHARVEST_OUTPUT_DIR", "/tmp/pics")
	t.Setenv("PICHARVEST_RESPECT_ROBOTS", "true")
	t.Setenv("PICHARVEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "searxng", cfg.Search.Provider)
	assert.Equal(t, "http://localhost:8888", cfg.Search.SearxngURL)
	assert.Equal(t, 4, cfg.Download.MaxWorkers)
	assert.Equal(t, 40, cfg.Orchestrator.MaxImages)
	assert.Equal(t, 0.55, cfg.Relevance.Threshold)
	assert.Equal(t, "/tmp/pics", cfg.Output.BaseDirectory)
	assert.True(t, cfg.Extract.RespectRobots)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvRejectsGarbageNumbers(t *testing.T) {
	t.Setenv("PICHARVEST_MAX_WORKERS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PICHARVEST_MAX_WORKERS")
	assert.Equal(t, 8, cfg.Download.MaxWorkers)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
orchestrator:
  max_images: 250
  sweep_limit: 10
tiers:
  large:
    url_cap_min: 300
    url_cap_multiplier: 5
    unvisited_limit: 250
    batch_size: 30
    variation_subset: 100
    variation_threshold: 20
domains:
  fast:
    - images.example.org
download:
  max_workers: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 250, cfg.Orchestrator.MaxImages)
	assert.Equal(t, 10, cfg.Orchestrator.SweepLimit)
	assert.Equal(t, 30, cfg.Tiers.For(500).BatchSize)
	assert.Equal(t, 2500, cfg.Tiers.For(500).AdmissionCap(500))
	assert.Equal(t, []string{"images.example.org"}, cfg.Domains.Fast)
	assert.Equal(t, 3, cfg.Download.MaxWorkers)
	// untouched sections keep their defaults
	assert.Equal(t, 15, cfg.Tiers.Medium.BatchSize)
	assert.Equal(t, 1.2, cfg.Orchestrator.OverageRatio)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestrator: [unclosed"), 0644))

	cfg := DefaultConfig()
	err := cfg.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }, "unknown search provider"},
		{"searxng without url", func(c *Config) { c.Search.Provider = "searxng" }, "searxng_url"},
		{"unknown extractor", func(c *Config) { c.Extract.Mode = "telepathy" }, "unknown extract mode"},
		{"zero workers", func(c *Config) { c.Download.MaxWorkers = 0 }, "max workers"},
		{"threshold above one", func(c *Config) { c.Relevance.Threshold = 1.5 }, "relevance threshold"},
		{"overage below one", func(c *Config) { c.Orchestrator.OverageRatio = 0.9 }, "overage ratio"},
		{"variation overage above cap", func(c *Config) { c.Orchestrator.VariationOverage = 1.5 }, "variation overage"},
		{"inverted tiers", func(c *Config) { c.Tiers.MediumMax = 10 }, "tier boundaries"},
		{"empty batch", func(c *Config) { c.Tiers.Large.BatchSize = 0 }, "large tier"},
		{"bad jpeg quality", func(c *Config) { c.Download.JPEGQuality = 0 }, "jpeg quality"},
		{"negative max pixels", func(c *Config) { c.Download.MaxPixels = -1 }, "max pixels"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.MaxWorkers = 0
	cfg.Output.BaseDirectory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max workers")
	assert.Contains(t, err.Error(), "output directory")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"max-images":  30,
		"max-workers": 2,
		"provider":    "searxng",
		"extractor":   "static",
		"output":      "/srv/pics",
		"threshold":   0.6,
		"log-level":   "warn",
	})

	assert.Equal(t, 30, cfg.Orchestrator.MaxImages)
	assert.Equal(t, 2, cfg.Download.MaxWorkers)
	assert.Equal(t, "searxng", cfg.Search.Provider)
	assert.Equal(t, "static", cfg.Extract.Mode)
	assert.Equal(t, "/srv/pics", cfg.Output.BaseDirectory)
	assert.Equal(t, 0.6, cfg.Relevance.Threshold)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  max_workers: 2\norchestrator:\n  max_images: 40\n"), 0644))
	t.Setenv("PICHARVEST_MAX_WORKERS", "5")

	cfg, err := Load(path, map[string]interface{}{"max-images": 70})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Download.MaxWorkers, "env beats file")
	assert.Equal(t, 70, cfg.Orchestrator.MaxImages, "flags beat file")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Orchestrator.MaxImages = 42
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 42, loaded.Orchestrator.MaxImages)
	assert.Equal(t, cfg.Tiers, loaded.Tiers)
}
