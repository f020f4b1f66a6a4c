package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/goliatone/go-sentinel/pkg/config"
	"github.com/goliatone/go-sentinel/pkg/observability"
	"github.com/goliatone/go-sentinel/pkg/sentinel"
)

type cli struct {
	Mock     bool   `help:"Answer every backend call from built-in fixtures." env:"SENTINEL_MOCK"`
	APIURL   string `name:"api-url" help:"NEXUS backend base URL (overrides NEXUS_API_URL)."`
	LogLevel string `name:"log-level" help:"Log level (overrides SENTINEL_LOG_LEVEL)."`

	Serve       serveCmd       `cmd:"" help:"Serve the operator dashboard over HTTP."`
	Login       loginCmd       `cmd:"" help:"Log in and store the session locally."`
	Logout      logoutCmd      `cmd:"" help:"Clear the locally stored session."`
	Watch       watchCmd       `cmd:"" help:"Poll panels and print every refresh."`
	Ask         askCmd         `cmd:"" help:"Ask the assistant a question."`
	Manifest    manifestCmd    `cmd:"" help:"Add or update a panel override in a manifest file."`
	MockBackend mockBackendCmd `cmd:"" name:"mock-backend" help:"Serve the NEXUS admin API from fixtures."`
}

func main() {
	var root cli
	ctx := kong.Parse(&root,
		kong.Name("sentinelctl"),
		kong.Description("Operator tooling for the NEXUS Sentinel dashboard."),
		kong.UsageOnError(),
	)
	ctx.BindTo(context.Background(), (*context.Context)(nil))
	ctx.Bind(&root)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// load reads the environment and applies global flag overrides.
func (c *cli) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("sentinelctl: config: %w", err)
	}
	if c.Mock {
		cfg.Mock = true
	}
	if c.APIURL != "" {
		cfg.APIURL = c.APIURL
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	logger, err := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("sentinelctl: logger: %w", err)
	}
	return *cfg, logger, nil
}

// cliApp builds an app whose settings survive between invocations. Redis stays
// as configured; memory falls back to a file under the user config dir.
func (c *cli) cliApp(settingsFile string) (*sentinel.App, *zap.Logger, error) {
	cfg, logger, err := c.load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Settings != config.SettingsRedis {
		path, err := resolveSettingsFile(settingsFile, cfg.SettingsFile)
		if err != nil {
			return nil, nil, err
		}
		cfg.Settings = config.SettingsFile
		cfg.SettingsFile = path
	}
	app, err := sentinel.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}

func resolveSettingsFile(flag, configured string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if configured != "" {
		return configured, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("sentinelctl: locate config dir: %w", err)
	}
	return filepath.Join(dir, "nexus-sentinel", "settings.yaml"), nil
}
