package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/app"
	"github.com/ternarybob/claimscope/internal/common"
)

var (
	// Command-line flags
	configFiles []string
	serverPort  int
	serverHost  string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "claimscope",
	Short:         "Patent infringement analysis pipeline",
	Long:          `ClaimScope runs staged LLM analyses of patents against target products and admits queued jobs under a global concurrency budget.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd, sweepCmd, jobCmd, masterCmd, versionCmd)
}

func main() {
	common.LoadVersionFromFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves config (defaults -> files -> env -> flags) and the logger
func loadConfig() error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("claimscope.toml"); err == nil {
			configFiles = append(configFiles, "claimscope.toml")
		} else if _, err := os.Stat("deployments/local/claimscope.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/claimscope.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	common.ApplyFlagOverrides(config, serverPort, serverHost)

	logger = common.InitLogger(config)
	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Str("storage_path", config.Storage.Badger.Path).
		Msg("Configuration loaded")
	return nil
}

// withApp builds the application for one command and closes it afterwards
func withApp(fn func(application *app.App) error) error {
	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()
	return fn(application)
}
