package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glorpus-work/datafetch/internal/logger"
	"github.com/glorpus-work/datafetch/pkg/auth"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/config"
	"github.com/glorpus-work/datafetch/pkg/hooks"
	"github.com/glorpus-work/datafetch/pkg/transfer"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
	NoColor    *bool
	LogFormat  *string
)

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		// An empty path makes LoadConfig and SaveConfig fail with a descriptive error.
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err.Error()})
		return ""
	}
	return defaultPath
}

// loadConfig loads the settings file, applies the global flags and
// initializes logging from the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if LogFormat != nil && *LogFormat != "" {
		cfg.Settings.LogFormat = *LogFormat
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	InitLogging(cfg)
	return cfg, nil
}

func loadCatalog(cfg *config.Config, dataset string) (*catalog.Catalog, error) {
	provider := catalog.NewProvider(cfg.Settings.CatalogDir)
	cat, err := provider.Load(dataset)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// datasetDir resolves where a dataset's files go, honoring a --data-dir override.
func datasetDir(cfg *config.Config, override, dataset string) string {
	if override != "" {
		return filepath.Join(override, dataset)
	}
	return cfg.DatasetDir(dataset)
}

// newRouter builds the transfer sources for every supported scheme.
// S3 is only registered when an AWS configuration can be loaded.
func newRouter(ctx context.Context, cfg *config.Config, probeTimeout int) (*transfer.Router, error) {
	s := cfg.Settings
	credentials, err := auth.NewSet(s.Auth)
	if err != nil {
		return nil, err
	}
	httpCfg := transfer.HTTPClientConfig{
		Timeout:      s.HTTPTimeout,
		ProbeTimeout: s.ProbeTimeout,
		UserAgent:    s.UserAgent,
		Auth:         credentials,
	}
	if probeTimeout > 0 {
		httpCfg.ProbeTimeout = secondsToDuration(probeTimeout)
	}

	router := transfer.NewRouter()
	httpSource := transfer.NewHTTPSource(nil, httpCfg)
	router.Register("http", httpSource)
	router.Register("https", httpSource)

	client, err := transfer.NewS3Client(ctx, transfer.S3ClientConfig{
		Region:       s.S3.Region,
		Endpoint:     s.S3.Endpoint,
		UsePathStyle: s.S3.UsePathStyle,
	})
	if err != nil {
		logger.Debug("S3 support disabled", logger.Fields{"error": err.Error()})
		return router, nil
	}
	router.Register("s3", transfer.NewS3Source(client))
	return router, nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// loadScripts returns the configured part hooks, or nil when none are set up.
func loadScripts(cfg *config.Config) (*hooks.TengoExecutor, error) {
	if cfg.Settings.HooksDir == "" {
		return nil, nil
	}
	executor := hooks.NewTengoExecutor()
	n, err := hooks.LoadFromDir(executor, cfg.Settings.HooksDir)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	logger.Debug("Loaded hooks", logger.Fields{"dir": cfg.Settings.HooksDir, "count": n})
	return executor, nil
}
