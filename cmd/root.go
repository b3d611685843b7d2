// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/browser"
	"github.com/xkilldash9x/stackscope/internal/config"
	"github.com/xkilldash9x/stackscope/internal/detection"
	"github.com/xkilldash9x/stackscope/internal/observability"
	"github.com/xkilldash9x/stackscope/internal/robots"
)

var cfgFile string

// NewRootCommand builds a fresh root command tree. A new instance per
// invocation keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "stackscope",
		Short:   "Stackscope identifies the publishing platform behind a URL.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				// Initialize a fallback logger if config unmarshal fails.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "stackscope"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting stackscope", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newReplayCmd())

	return rootCmd
}

// Execute runs the root command under the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("STACKSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}

// loadConfig finalizes the active configuration after flags have been bound.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine wires the live detection pipeline: a shared browser process, a
// robots.txt collector, and the orchestrator over the built-in detectors.
// The returned cleanup shuts the browser down and must always be called.
func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, func(context.Context), error) {
	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}

	collector := robots.NewCollector(cfg.Network.RobotsTimeout, logger)
	probers := detection.DefaultProbers(collector, logger)
	orch := detection.NewOrchestrator(manager, probers, logger)
	orch.SetThreshold(cfg.Detection.ConfidenceThreshold)

	cleanup := func(shutdownCtx context.Context) {
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}
	return &engine{orch: orch, provider: manager, robots: collector}, cleanup, nil
}

// engine bundles the wired live pipeline pieces commands need.
type engine struct {
	orch     *detection.Orchestrator
	provider detection.ContextProvider
	robots   *robots.Collector
}
