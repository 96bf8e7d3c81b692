package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"picharvest/pkg/browser"
	"picharvest/pkg/config"
	"picharvest/pkg/credentials"
	"picharvest/pkg/extract"
	"picharvest/pkg/fetch"
	"picharvest/pkg/harvest"
	"picharvest/pkg/logger"
	"picharvest/pkg/relevance"
	"picharvest/pkg/search"
	"picharvest/pkg/store"
	"picharvest/pkg/strategy"
	"picharvest/pkg/ui"
)

var (
	maxImages     int
	maxWorkers    int
	outputDir     string
	databasePath  string
	providerName  string
	searxngURL    string
	extractMode   string
	threshold     float64
	faceCascade   string
	respectRobots bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Harvest images for a query",
	Long: `Search for the query, visit the referrer pages and download new images
into a folder named after the subject.

Images already in the database, from this or any earlier run, are skipped.
The run stops once the requested number of images is reached; up to 20%
more may be kept from pages already being processed.`,
	Example: `  # Harvest 100 images with default settings
  picharvest run "ada lovelace"

  # Fewer images, more download workers
  picharvest run "ada lovelace" --max-images 30 --max-workers 12

  # Use a SearXNG instance and the static extractor
  picharvest run "ada lovelace" --provider searxng --searxng-url https://searx.example.org --extractor static`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&maxImages, "max-images", "n", 0, "number of new images to collect (default 100)")
	runCmd.Flags().IntVarP(&maxWorkers, "max-workers", "w", 0, "concurrent image downloads (default 8)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "root downloads directory")
	runCmd.Flags().StringVar(&databasePath, "database", "", "metadata database path")
	runCmd.Flags().StringVar(&providerName, "provider", "", "search provider: google or searxng")
	runCmd.Flags().StringVar(&searxngURL, "searxng-url", "", "SearXNG base URL")
	runCmd.Flags().StringVar(&extractMode, "extractor", "", "page extractor: browser or static")
	runCmd.Flags().Float64Var(&threshold, "threshold", 0, "relevance threshold between 0 and 1 (default 0.4)")
	runCmd.Flags().StringVar(&faceCascade, "face-cascade", "", "pigo face cascade file; without it images are kept unscored")
	runCmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "skip referrer pages disallowed by robots.txt")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query must not be empty")
	}

	flags := map[string]interface{}{
		"max-images":   maxImages,
		"max-workers":  maxWorkers,
		"output":       outputDir,
		"database":     databasePath,
		"provider":     providerName,
		"searxng-url":  searxngURL,
		"extractor":    extractMode,
		"threshold":    threshold,
		"face-cascade": faceCascade,
	}
	if cmd.Flags().Changed("respect-robots") {
		flags["respect-robots"] = respectRobots
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Output.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	// Chrome is only launched once a page is actually rendered
	bm := browser.NewManager(cfg.Browser, log)
	defer bm.Close()

	provider, err := search.New(cfg.Search, bm, searchToken(cfg.Search), log)
	if err != nil {
		return err
	}
	extractor, err := extract.New(cfg.Extract, cfg.Search.UserAgent, bm, log)
	if err != nil {
		return err
	}

	var detector relevance.FaceDetector
	if cfg.Relevance.FaceCascade != "" {
		d, err := relevance.NewPigoDetector(cfg.Relevance.FaceCascade)
		if err != nil {
			return fmt.Errorf("failed to load face cascade: %w", err)
		}
		detector = d
	} else {
		log.Warn("No face cascade configured, images will be kept without relevance scoring")
	}

	var observer harvest.Observer
	if !quiet {
		observer = ui.NewProgressDisplay(os.Stdout, verbose)
	}

	engine, err := harvest.NewEngine(cfg, harvest.Deps{
		Search:   provider,
		Extract:  extractor,
		Fetch:    fetch.NewClient(cfg.Download, cfg.Search.UserAgent, log),
		Filter:   relevance.NewFilter(detector, cfg.Relevance.Threshold, log),
		Store:    st,
		Strategy: strategy.New(cfg.Tiers, cfg.Orchestrator.MaxVariations),
		Logger:   log,
		Observer: observer,
	})
	if err != nil {
		return err
	}

	if !quiet {
		ui.PrintInfo("Query", query)
		ui.PrintInfo("Target", fmt.Sprint(cfg.Orchestrator.MaxImages))
	}

	res, err := engine.Run(ctx, query, cfg.Orchestrator.MaxImages)
	if res != nil {
		fmt.Println()
		ui.PrintSummary(os.Stdout, res)
		if notifications {
			ui.NewNotifier().NotifyResult(query, res.TotalDownloads, res.Target, res.Message)
		}
	}
	if err != nil {
		log.WithError(err).Error("Harvest failed")
		return err
	}
	return nil
}

// searchToken looks up the bearer token for a SearXNG endpoint. The account
// is search.account when set, else the endpoint host.
func searchToken(cfg config.SearchConfig) string {
	if !strings.EqualFold(cfg.Provider, "searxng") {
		return ""
	}
	account := searchAccount(cfg)
	if account == "" {
		return ""
	}
	dir, err := credentials.ConfigDir()
	if err != nil {
		return ""
	}
	m, err := credentials.NewManager(dir)
	if err != nil {
		return ""
	}
	return m.Lookup(account)
}

func searchAccount(cfg config.SearchConfig) string {
	if cfg.Account != "" {
		return cfg.Account
	}
	u, err := url.Parse(cfg.SearxngURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
