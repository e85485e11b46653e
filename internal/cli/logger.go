package cli

import (
	"github.com/glorpus-work/datafetch/internal/logger"
	"github.com/glorpus-work/datafetch/pkg/config"
)

// InitLogging configures the process logger from the settings and the --no-color flag.
func InitLogging(cfg *config.Config) {
	logger.SetNoColor(NoColor != nil && *NoColor)
	logger.InitLogger(cfg.Settings.LogLevel, logger.OutputFormat(cfg.Settings.LogFormat))
}
