package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"picharvest/pkg/config"
	"picharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage picharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PICHARVEST_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Long: `Write a configuration file holding every option at its default value.

The file is created as '.picharvest.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const configHeader = `# picharvest configuration
#
# Every value below is the built-in default. Environment variables prefixed
# with PICHARVEST_ override this file, e.g. PICHARVEST_MAX_IMAGES=50.
# Durations use Go syntax: 300ms, 15s, 1m.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".picharvest.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Point relevance.face_cascade at a pigo cascade file to enable face scoring")
	fmt.Println("2. Run 'picharvest config validate' to check the configuration")
	fmt.Println("3. Start harvesting with 'picharvest run \"<subject>\"'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (PICHARVEST_*)")
	fmt.Println("3. .env files")
	if path := config.Locate(configFile); path != "" {
		fmt.Printf("4. Configuration file: %s\n", path)
	} else {
		fmt.Println("4. Configuration file: (none found)")
	}
	fmt.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := config.Locate(configFile)
	if path == "" {
		ui.PrintWarning("No configuration file found, validating defaults and environment")
	} else {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Relevance.FaceCascade == "" {
		warnings = append(warnings, "relevance.face_cascade is empty; images are kept without scoring")
	} else if _, err := os.Stat(cfg.Relevance.FaceCascade); err != nil {
		warnings = append(warnings, fmt.Sprintf("face cascade not readable: %v", err))
	}
	if cfg.Search.Provider == "searxng" && searchToken(cfg.Search) == "" {
		warnings = append(warnings, fmt.Sprintf("no token stored for %q; requests go out unauthenticated", searchAccount(cfg.Search)))
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		warnings = append(warnings, fmt.Sprintf("cannot create output directory: %v", err))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Provider:        %s\n", cfg.Search.Provider)
	fmt.Printf("  Extractor:       %s\n", cfg.Extract.Mode)
	fmt.Printf("  Output:          %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Database:        %s\n", cfg.Output.Database)
	fmt.Printf("  Max images:      %d\n", cfg.Orchestrator.MaxImages)
	fmt.Printf("  Download workers: %d\n", cfg.Download.MaxWorkers)
	fmt.Printf("  Threshold:       %.2f\n", cfg.Relevance.Threshold)
	return nil
}
