package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"picharvest/pkg/config"
	"picharvest/pkg/logger"
	"picharvest/pkg/store"
	"picharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "picharvest",
	Short: "Harvest images of a named subject from the open web",
	Long: `picharvest searches the web for a subject, visits the pages the search
returns and keeps every new, relevant picture it finds in one folder per subject.

Features:
  - Google Images through headless Chrome, or a SearXNG endpoint
  - Fast referrer domains first, slow ones last
  - Face and shape based relevance scoring
  - Content fingerprints shared across runs, so nothing is kept twice
  - Query variations when the base search falls short`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if cmd.Name() == "run" && !quiet {
			ui.PrintBanner()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .picharvest.yaml or $HOME/.config/picharvest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when a run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only the final summary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every image outcome and all logs")

	rootCmd.SetVersionTemplate(`picharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges file, environment and flags, then sets up the global logger.
// Without --verbose or --log-level the console only shows errors so the
// progress line stays readable.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	default:
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openStore loads the configuration and opens the metadata database
func openStore() (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Output.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.Output.Database, err)
	}
	return cfg, st, nil
}
