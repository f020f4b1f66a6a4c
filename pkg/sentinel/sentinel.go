// Package sentinel assembles a ready-to-serve operator dashboard from runtime
// configuration.
package sentinel

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	core "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/components/sentinel/httpapi"
	"github.com/goliatone/go-sentinel/pkg/config"
	"github.com/goliatone/go-sentinel/pkg/nexusapi"
	"github.com/goliatone/go-sentinel/pkg/observability"
)

// Service exposes the underlying components/sentinel.Service type.
type Service = core.Service

// Options re-export for convenience.
type Options = core.Options

// NewService proxies to the internal constructor.
func NewService(opts Options) *Service {
	return core.NewService(opts)
}

// App bundles the collaborators every transport needs.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Service    *core.Service
	Controller *core.Controller
	Executor   *httpapi.CommandExecutor
	Broadcast  *core.BroadcastHook
	Metrics    *observability.PrometheusTelemetry
	Transport  core.Transport

	closers []func() error
}

// Option customizes New.
type Option func(*buildOptions)

type buildOptions struct {
	transport core.Transport
	settings  core.SettingsStore
	renderer  core.Renderer
	templates fs.FS
	clock     core.Clock
}

// WithTransport replaces the backend client.
func WithTransport(t core.Transport) Option {
	return func(o *buildOptions) { o.transport = t }
}

// WithSettingsStore replaces the configured settings backend.
func WithSettingsStore(store core.SettingsStore) Option {
	return func(o *buildOptions) { o.settings = store }
}

// WithRenderer replaces the embedded templates.
func WithRenderer(r core.Renderer) Option {
	return func(o *buildOptions) { o.renderer = r }
}

// WithTemplates loads the page templates from fsys (templates/*.html) instead of the
// embedded set.
func WithTemplates(fsys fs.FS) Option {
	return func(o *buildOptions) { o.templates = fsys }
}

// WithClock replaces the wall clock.
func WithClock(c core.Clock) Option {
	return func(o *buildOptions) { o.clock = c }
}

// New wires the service, controller and command executor from cfg.
func New(cfg config.Config, logger *zap.Logger, options ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts buildOptions
	for _, option := range options {
		option(&opts)
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	registry := core.NewRegistry()
	validator := core.NewJSONSchemaValidator()
	if cfg.Manifest != "" {
		if _, err = registry.LoadManifestFile(cfg.Manifest, validator); err != nil {
			return nil, fmt.Errorf("sentinel: load manifest: %w", err)
		}
	}

	settings := opts.settings
	if settings == nil {
		settings, err = app.settingsStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	transport := opts.transport
	if transport == nil {
		transport, err = newTransport(cfg)
		if err != nil {
			return nil, err
		}
	}
	app.Transport = transport
	if closer, ok := transport.(io.Closer); ok {
		app.closers = append(app.closers, closer.Close)
	}

	metrics, err := observability.NewPrometheusTelemetry()
	if err != nil {
		return nil, fmt.Errorf("sentinel: metrics: %w", err)
	}
	app.Metrics = metrics
	telemetry := observability.Fanout{metrics, observability.LogTelemetry{Logger: logger}}

	var chartOpts []core.ChartRendererOption
	if cfg.ChartAssetsHost != "" {
		chartOpts = append(chartOpts, core.WithChartAssetsHost(cfg.ChartAssetsHost))
	}

	app.Broadcast = core.NewBroadcastHook()
	app.Service = core.NewService(core.Options{
		Settings:        settings,
		Transport:       transport,
		Registry:        registry,
		ConfigValidator: validator,
		RefreshHook:     app.Broadcast,
		Telemetry:       telemetry,
		Logger:          logger,
		Clock:           opts.clock,
		Charts:          core.NewChartRenderer(chartOpts...),
		Gate:            core.NewGate(core.RoleSuperAdmin, cfg.BasePath+"/login"),
		Breakpoint:      cfg.Breakpoint,
		IdleTimeout:     cfg.IdleTimeout,
	})
	app.closers = append([]func() error{func() error {
		app.Service.Close()
		return nil
	}, app.Broadcast.Close}, app.closers...)

	renderer := opts.renderer
	if renderer == nil {
		renderer, err = core.NewTemplateRenderer(opts.templates)
		if err != nil {
			return nil, fmt.Errorf("sentinel: templates: %w", err)
		}
	}
	app.Controller = core.NewController(app.Service, renderer)
	app.Executor = httpapi.NewCommandExecutor(app.Service, telemetry)
	return app, nil
}

func (a *App) settingsStore(cfg config.Config) (core.SettingsStore, error) {
	switch cfg.Settings {
	case "", config.SettingsMemory:
		return core.NewInMemorySettingsStore(), nil
	case config.SettingsRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		return core.NewRedisSettingsStore(client, cfg.RedisTTL), nil
	case config.SettingsFile:
		return core.NewFileSettingsStore(cfg.SettingsFile), nil
	default:
		return nil, fmt.Errorf("sentinel: unknown settings backend %q", cfg.Settings)
	}
}

func newTransport(cfg config.Config) (core.Transport, error) {
	if cfg.Mock {
		return nexusapi.NewMockClient(nexusapi.DefaultMockData()), nil
	}
	client, err := nexusapi.NewClient(nexusapi.Config{
		BaseURL:           cfg.APIURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		Tracing:           cfg.Tracing,
	})
	if err != nil {
		return nil, fmt.Errorf("sentinel: backend client: %w", err)
	}
	return client, nil
}

// Handlers returns the net/http handlers bound to the app.
func (a *App) Handlers() *httpapi.Handlers {
	return &httpapi.Handlers{
		API:       a.Executor,
		Gate:      a.Service,
		Broadcast: a.Broadcast,
		BasePath:  a.Config.BasePath,
	}
}

// Handler returns the JSON API router.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(a.Handlers(), httpapi.RouterOptions{
		ActionsPerMinute: a.Config.ActionsPerMin,
		SSLRedirect:      a.Config.IsProduction(),
	})
}

// Close stops every panel and releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
