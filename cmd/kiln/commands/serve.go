package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/internal/telemetry"
	"github.com/kilnproject/kiln/pkg/config"
	"github.com/kilnproject/kiln/pkg/lifecycle"
	"github.com/kilnproject/kiln/pkg/metrics"
	"github.com/kilnproject/kiln/pkg/templates"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiln template server",
	Long: `Start the kiln HTTP server with the specified configuration.

Templates are compiled once at startup. With watching enabled (the
default), edits under the configured template paths are picked up and
recompiled into a fresh snapshot without restarting the server.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/kiln/config.yaml.

Examples:
  # Start with default config location
  kiln serve

  # Start with custom config file
  kiln serve --config /etc/kiln/config.yaml

  # Start with hot reload disabled
  kiln serve --watch=false

  # Start with environment variable overrides
  KILN_LOGGING_LEVEL=DEBUG kiln serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Watch template directories and hot reload on change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "kiln",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "kiln",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("profiling disabled")
	}
	logger.Info("metrics", "enabled", cfg.Metrics.Enabled)

	watch := cfg.Templates.WatchEnabled()
	if cmd.Flags().Changed("watch") {
		watch = serveWatch
	}

	svc, err := lifecycle.New(lifecycle.Options{
		Version: Version,
		Server:  cfg.Server,
		Templates: templates.Config{
			Paths:      cfg.Templates.Paths,
			Extensions: cfg.Templates.Extensions,
		},
		Watch:          watch,
		CoalesceWindow: cfg.Templates.CoalesceWindow,
	})
	if err != nil {
		return err
	}

	logger.Info("server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"watch", watch,
		"template_paths", cfg.Templates.Paths,
	)

	return svc.Run(ctx)
}
