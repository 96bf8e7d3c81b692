package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for picharvest
type Config struct {
	Search       SearchConfig       `yaml:"search" json:"search"`
	Browser      BrowserConfig      `yaml:"browser" json:"browser"`
	Extract      ExtractConfig      `yaml:"extract" json:"extract"`
	Download     DownloadConfig     `yaml:"download" json:"download"`
	Relevance    RelevanceConfig    `yaml:"relevance" json:"relevance"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" json:"orchestrator"`
	Tiers        TierConfig         `yaml:"tiers" json:"tiers"`
	Domains      DomainConfig       `yaml:"domains" json:"domains"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

// SearchConfig selects and paces the image search surface
type SearchConfig struct {
	Provider          string   `yaml:"provider" json:"provider"` // google or searxng
	SearxngURL        string   `yaml:"searxng_url" json:"searxng_url"`
	Account           string   `yaml:"account" json:"account"`
	RequestsPerMinute int      `yaml:"requests_per_minute" json:"requests_per_minute"`
	ScrollRounds      int      `yaml:"scroll_rounds" json:"scroll_rounds"`
	UserAgent         string   `yaml:"user_agent" json:"user_agent"`
	SkipDomains       []string `yaml:"skip_domains" json:"skip_domains"`
}

// BrowserConfig controls the headless Chrome used for search and extraction
type BrowserConfig struct {
	RemoteURL         string        `yaml:"remote_url" json:"remote_url"`
	Headless          bool          `yaml:"headless" json:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// ExtractConfig controls how referrer pages are turned into image URLs
type ExtractConfig struct {
	Mode             string        `yaml:"mode" json:"mode"` // browser or static
	RespectRobots    bool          `yaml:"respect_robots" json:"respect_robots"`
	MaxImagesPerPage int           `yaml:"max_images_per_page" json:"max_images_per_page"`
	PageConcurrency  int           `yaml:"page_concurrency" json:"page_concurrency"`
	PageTimeout      time.Duration `yaml:"page_timeout" json:"page_timeout"`
}

// DownloadConfig holds image fetch and validation settings
type DownloadConfig struct {
	MaxWorkers    int           `yaml:"max_workers" json:"max_workers"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay" json:"retry_delay"`
	MinWidth      int           `yaml:"min_width" json:"min_width"`
	MinHeight     int           `yaml:"min_height" json:"min_height"`
	MinBytes      int64         `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes      int64         `yaml:"max_bytes" json:"max_bytes"`
	MaxPixels     int64         `yaml:"max_pixels" json:"max_pixels"`
	JPEGQuality   int           `yaml:"jpeg_quality" json:"jpeg_quality"`
}

// RelevanceConfig holds the stage 2 scoring settings
type RelevanceConfig struct {
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	FaceCascade string  `yaml:"face_cascade" json:"face_cascade"`
}

// OrchestratorConfig holds the phase and stopping parameters
type OrchestratorConfig struct {
	MaxImages        int           `yaml:"max_images" json:"max_images"`
	OverageRatio     float64       `yaml:"overage_ratio" json:"overage_ratio"`
	VariationOverage float64       `yaml:"variation_overage" json:"variation_overage"`
	SweepLimit       int           `yaml:"sweep_limit" json:"sweep_limit"`
	BatchDelay       time.Duration `yaml:"batch_delay" json:"batch_delay"`
	MaxVariations    int           `yaml:"max_variations" json:"max_variations"`
	EnableVariations bool          `yaml:"enable_variations" json:"enable_variations"`
	EnableSweep      bool          `yaml:"enable_sweep" json:"enable_sweep"`
}

// TierSettings are the knobs that scale with the requested image count
type TierSettings struct {
	Name               string `yaml:"-" json:"name"`
	URLCapMin          int    `yaml:"url_cap_min" json:"url_cap_min"`
	URLCapMultiplier   int    `yaml:"url_cap_multiplier" json:"url_cap_multiplier"`
	UnvisitedLimit     int    `yaml:"unvisited_limit" json:"unvisited_limit"`
	BatchSize          int    `yaml:"batch_size" json:"batch_size"`
	VariationSubset    int    `yaml:"variation_subset" json:"variation_subset"`
	VariationThreshold int    `yaml:"variation_threshold" json:"variation_threshold"`
}

// AdmissionCap returns how many discovered URLs a target of this tier keeps
func (t TierSettings) AdmissionCap(target int) int {
	return max(t.URLCapMin, t.URLCapMultiplier*target)
}

// TierConfig maps target sizes to tier settings
type TierConfig struct {
	SmallMax  int          `yaml:"small_max" json:"small_max"`
	MediumMax int          `yaml:"medium_max" json:"medium_max"`
	Small     TierSettings `yaml:"small" json:"small"`
	Medium    TierSettings `yaml:"medium" json:"medium"`
	Large     TierSettings `yaml:"large" json:"large"`
}

// For returns the tier a target count falls into
func (tc TierConfig) For(target int) TierSettings {
	var t TierSettings
	switch {
	case target <= tc.SmallMax:
		t = tc.Small
		t.Name = "small"
	case target <= tc.MediumMax:
		t = tc.Medium
		t.Name = "medium"
	default:
		t = tc.Large
		t.Name = "large"
	}
	return t
}

// DomainConfig is the static historical-performance table for referrer domains
type DomainConfig struct {
	Fast         []string      `yaml:"fast" json:"fast"`
	Slow         []string      `yaml:"slow" json:"slow"`
	FastSettle   time.Duration `yaml:"fast_settle" json:"fast_settle"`
	NormalSettle time.Duration `yaml:"normal_settle" json:"normal_settle"`
	SlowSettle   time.Duration `yaml:"slow_settle" json:"slow_settle"`
}

// OutputConfig holds output directory and database locations
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	Database      string `yaml:"database" json:"database"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultSkipDomains are referrer hosts that never carry subject images
var DefaultSkipDomains = []string{
	"google.", "facebook.", "twitter.", "instagram.", "linkedin.",
	"youtube.", "reddit.", "pinterest.", "tiktok.", "snapchat.",
	"auth.fandom.", "static.wikia.", "www.w3.org", "www.wapforum.org",
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Provider:          "google",
			RequestsPerMinute: 20,
			ScrollRounds:      3,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			SkipDomains:       append([]string(nil), DefaultSkipDomains...),
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Extract: ExtractConfig{
			Mode:             "browser",
			RespectRobots:    false,
			MaxImagesPerPage: 60,
			PageConcurrency:  4,
			PageTimeout:      45 * time.Second,
		},
		Download: DownloadConfig{
			MaxWorkers:    8,
			Timeout:       15 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
			MinWidth:      150,
			MinHeight:     150,
			MinBytes:      8000,
			MaxBytes:      20 << 20,
			MaxPixels:     40_000_000,
			JPEGQuality:   95,
		},
		Relevance: RelevanceConfig{
			Threshold: 0.4,
		},
		Orchestrator: OrchestratorConfig{
			MaxImages:        100,
			OverageRatio:     1.2,
			VariationOverage: 1.1,
			SweepLimit:       50,
			BatchDelay:       300 * time.Millisecond,
			MaxVariations:    4,
			EnableVariations: true,
			EnableSweep:      true,
		},
		Tiers: TierConfig{
			SmallMax:  20,
			MediumMax: 100,
			Small: TierSettings{
				URLCapMin: 10, URLCapMultiplier: 2, UnvisitedLimit: 50,
				BatchSize: 10, VariationSubset: 15, VariationThreshold: 3,
			},
			Medium: TierSettings{
				URLCapMin: 50, URLCapMultiplier: 3, UnvisitedLimit: 100,
				BatchSize: 15, VariationSubset: 50, VariationThreshold: 5,
			},
			Large: TierSettings{
				URLCapMin: 200, URLCapMultiplier: 4, UnvisitedLimit: 200,
				BatchSize: 25, VariationSubset: 200, VariationThreshold: 10,
			},
		},
		Domains: DomainConfig{
			Fast: []string{
				"media.gettyimages.com", "upload.wikimedia.org", "commons.wikimedia.org",
				"cdn-images.dzcdn.net", "i.pinimg.com", "live.staticflickr.com",
				"m.media-amazon.com", "ssl.gstatic.com", "pbs.twimg.com",
			},
			Slow: []string{
				"www.thierrylebraly.com", "shop.maiermedia-gmbh.com", "www.algemeiner.com",
				"thefashioninsider.com", "www.kveller.com", "israeled.org",
			},
			FastSettle:   200 * time.Millisecond,
			NormalSettle: 300 * time.Millisecond,
			SlowSettle:   800 * time.Millisecond,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
			Database:      "./downloads/picharvest.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ratioEpsilon absorbs float noise such as 10*1.1 = 11.000000000000002
const ratioEpsilon = 1e-9

// HardCap is the most new downloads a run may keep for target
func (o OrchestratorConfig) HardCap(target int) int {
	return int(math.Floor(float64(target)*o.OverageRatio + ratioEpsilon))
}

// VariationStop is the download count at which the variation loop stops
func (o OrchestratorConfig) VariationStop(target int) int {
	return int(math.Ceil(float64(target)*o.VariationOverage - ratioEpsilon))
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("PICHARVEST_PROVIDER"); v != "" {
		c.Search.Provider = v
	}
	if v := os.Getenv("PICHARVEST_SEARXNG_URL"); v != "" {
		c.Search.SearxngURL = v
	}
	if v := os.Getenv("PICHARVEST_USER_AGENT"); v != "" {
		c.Search.UserAgent = v
	}
	if v := os.Getenv("PICHARVEST_BROWSER_URL"); v != "" {
		c.Browser.RemoteURL = v
	}
	if v := os.Getenv("PICHARVEST_EXTRACTOR"); v != "" {
		c.Extract.Mode = v
	}
	if v := os.Getenv("PICHARVEST_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("PICHARVEST_DATABASE"); v != "" {
		c.Output.Database = v
	}
	if v := os.Getenv("PICHARVEST_FACE_CASCADE"); v != "" {
		c.Relevance.FaceCascade = v
	}
	if v := os.Getenv("PICHARVEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PICHARVEST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("PICHARVEST_MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PICHARVEST_MAX_WORKERS: %w", err))
		} else if n > 0 {
			c.Download.MaxWorkers = n
		}
	}
	if v := os.Getenv("PICHARVEST_MAX_IMAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PICHARVEST_MAX_IMAGES: %w", err))
		} else if n > 0 {
			c.Orchestrator.MaxImages = n
		}
	}
	if v := os.Getenv("PICHARVEST_RELEVANCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("PICHARVEST_RELEVANCE_THRESHOLD: %w", err))
		} else {
			c.Relevance.Threshold = f
		}
	}
	if v := os.Getenv("PICHARVEST_RESPECT_ROBOTS"); v != "" {
		c.Extract.RespectRobots = strings.EqualFold(v, "true")
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	path = Locate(path)
	if path == "" {
		return nil // no config file found, not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Locate returns path when set, else the first config file found in the
// standard locations, else ""
func Locate(path string) string {
	if path != "" {
		return path
	}
	home := os.Getenv("HOME")
	locations := []string{
		".picharvest.yaml",
		".picharvest.yml",
		filepath.Join(home, ".config", "picharvest", "config.yaml"),
		filepath.Join(home, ".config", "picharvest", "config.yml"),
		filepath.Join(home, ".picharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Search.Provider) {
	case "google":
	case "searxng":
		if c.Search.SearxngURL == "" {
			errs = append(errs, errors.New("searxng provider requires search.searxng_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q", c.Search.Provider))
	}
	if c.Search.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("search requests per minute must be positive"))
	}

	switch strings.ToLower(c.Extract.Mode) {
	case "browser", "static":
	default:
		errs = append(errs, fmt.Errorf("unknown extract mode %q", c.Extract.Mode))
	}
	if c.Extract.PageConcurrency <= 0 {
		errs = append(errs, errors.New("page concurrency must be positive"))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}

	if c.Download.MaxWorkers <= 0 {
		errs = append(errs, errors.New("max workers must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Download.JPEGQuality < 1 || c.Download.JPEGQuality > 100 {
		errs = append(errs, errors.New("jpeg quality must be between 1 and 100"))
	}
	if c.Download.MaxBytes > 0 && c.Download.MaxBytes < c.Download.MinBytes {
		errs = append(errs, errors.New("max bytes must not be below min bytes"))
	}
	if c.Download.MaxPixels < 0 {
		errs = append(errs, errors.New("max pixels must not be negative"))
	}

	if c.Relevance.Threshold < 0 || c.Relevance.Threshold > 1 {
		errs = append(errs, errors.New("relevance threshold must be within [0,1]"))
	}

	o := c.Orchestrator
	if o.MaxImages <= 0 {
		errs = append(errs, errors.New("max images must be positive"))
	}
	if o.OverageRatio < 1 {
		errs = append(errs, errors.New("overage ratio must be at least 1"))
	}
	if o.VariationOverage < 1 || o.VariationOverage > o.OverageRatio {
		errs = append(errs, errors.New("variation overage must be between 1 and the overage ratio"))
	}
	if o.MaxVariations < 0 {
		errs = append(errs, errors.New("max variations cannot be negative"))
	}

	t := c.Tiers
	if t.SmallMax <= 0 || t.MediumMax <= t.SmallMax {
		errs = append(errs, errors.New("tier boundaries must satisfy 0 < small_max < medium_max"))
	}
	for name, ts := range map[string]TierSettings{"small": t.Small, "medium": t.Medium, "large": t.Large} {
		if ts.BatchSize <= 0 || ts.UnvisitedLimit <= 0 || ts.URLCapMin <= 0 {
			errs = append(errs, fmt.Errorf("%s tier needs positive batch size, unvisited limit and url cap", name))
		}
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.Database == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["max-images"].(int); ok && v > 0 {
		c.Orchestrator.MaxImages = v
	}
	if v, ok := flags["max-workers"].(int); ok && v > 0 {
		c.Download.MaxWorkers = v
	}
	if v, ok := flags["provider"].(string); ok && v != "" {
		c.Search.Provider = v
	}
	if v, ok := flags["searxng-url"].(string); ok && v != "" {
		c.Search.SearxngURL = v
	}
	if v, ok := flags["extractor"].(string); ok && v != "" {
		c.Extract.Mode = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["database"].(string); ok && v != "" {
		c.Output.Database = v
	}
	if v, ok := flags["threshold"].(float64); ok && v > 0 {
		c.Relevance.Threshold = v
	}
	if v, ok := flags["face-cascade"].(string); ok && v != "" {
		c.Relevance.FaceCascade = v
	}
	if v, ok := flags["respect-robots"].(bool); ok {
		c.Extract.RespectRobots = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".picharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
