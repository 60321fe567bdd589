package commands

import (
	"fmt"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/pkg/config"
)

// InitLogger initializes the structured logger from configuration, with
// the global --log-level and --log-format flags taking precedence.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if logLevel != "" {
		loggerCfg.Level = logLevel
	}
	if logFormat != "" {
		loggerCfg.Format = logFormat
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
