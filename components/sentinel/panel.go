package sentinel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PanelSnapshot is the render-ready state of a mounted panel.
type PanelSnapshot struct {
	Code            string                           `json:"code"`
	Name            string                           `json:"name"`
	Description     string                           `json:"description,omitempty"`
	Category        string                           `json:"category"`
	IntervalSeconds int                              `json:"interval_seconds"`
	Loading         bool                             `json:"loading"`
	Empty           bool                             `json:"empty"`
	Online          bool                             `json:"online"`
	Resources       map[string]ResourceSnapshot[any] `json:"resources"`
	Counters        []CounterSnapshot                `json:"counters"`
	Badges          []Badge                          `json:"badges"`
	Charts          []RenderedChart                  `json:"charts"`
	Banner          *Banner                          `json:"banner,omitempty"`
	Poller          PollerState                      `json:"poller"`
}

type panelConfig struct {
	def       PanelDefinition
	viewer    Viewer
	settings  Settings
	transport Transport
	clock     Clock
	telemetry Telemetry
	logger    *zap.Logger
	hook      RefreshHook
	charts    *ChartRenderer
	interval  time.Duration
}

// Panel owns the poller, resources and counters of one panel for one viewer.
type Panel struct {
	def       PanelDefinition
	viewer    Viewer
	settings  Settings
	transport Transport
	clock     Clock
	telemetry Telemetry
	logger    *zap.Logger
	hook      RefreshHook
	renderer  *ChartRenderer

	resources map[string]*Resource[any]
	animator  *Animator
	poller    *Poller

	mu       sync.RWMutex
	lifetime context.Context
	online   bool
	badges   []Badge
	charts   []ChartSpec
	banner   *Banner
}

func newPanel(cfg panelConfig) (*Panel, error) {
	if cfg.transport == nil {
		return nil, errors.New("sentinel: panel transport is required")
	}
	p := &Panel{
		def:       cfg.def,
		viewer:    cfg.viewer,
		settings:  cfg.settings,
		transport: cfg.transport,
		clock:     normalizeClock(cfg.clock),
		telemetry: normalizeTelemetry(cfg.telemetry),
		logger:    normalizeLogger(cfg.logger).With(zap.String("panel", cfg.def.Code), zap.String("scope", cfg.viewer.Scope)),
		hook:      cfg.hook,
		renderer:  cfg.charts,
		resources: make(map[string]*Resource[any], len(cfg.def.Endpoints)),
		lifetime:  context.Background(),
		online:    true,
	}
	if p.hook == nil {
		p.hook = noopRefreshHook{}
	}
	for _, ep := range cfg.def.Endpoints {
		p.resources[ep.Key] = NewResource[any]()
	}
	p.animator = NewAnimator(AnimatorOptions{Clock: p.clock, OnFrame: p.onFrame})
	for _, spec := range cfg.def.Counters {
		p.animator.Add(spec.Key, NewCounter(CounterOptions{
			Label:    spec.Label,
			Duration: spec.Duration,
			Decimals: spec.Decimals,
			Suffix:   spec.Suffix,
		}))
	}
	interval := cfg.interval
	if interval <= 0 {
		interval = cfg.def.Interval
	}
	poller, err := NewPoller(PollerOptions{
		Name:      cfg.def.Code,
		Interval:  interval,
		Cycle:     p.cycle,
		Clock:     p.clock,
		Telemetry: p.telemetry,
		Logger:    p.logger,
	})
	if err != nil {
		return nil, err
	}
	p.poller = poller
	return p, nil
}

// Code returns the panel code.
func (p *Panel) Code() string { return p.def.Code }

// Definition returns the panel definition.
func (p *Panel) Definition() PanelDefinition { return p.def }

// Start runs the first cycle immediately and keeps polling until Stop.
func (p *Panel) Start(ctx context.Context) error {
	p.mu.Lock()
	p.lifetime = ctx
	p.mu.Unlock()
	return p.poller.Start(ctx)
}

// Stop tears the panel down. In-flight requests are cancelled and nothing is committed
// after Stop returns.
func (p *Panel) Stop() {
	p.poller.Stop()
	p.animator.Close()
}

// Refresh requests an immediate cycle.
func (p *Panel) Refresh(ctx context.Context) error {
	return p.poller.Refresh(ctx)
}

// RunCycle performs one synchronous cycle.
func (p *Panel) RunCycle(ctx context.Context) error {
	return p.poller.RunCycle(ctx)
}

// Pause suppresses scheduled cycles.
func (p *Panel) Pause() { p.poller.Pause() }

// Resume re-enables scheduled cycles.
func (p *Panel) Resume() { p.poller.Resume() }

// Animator exposes the counter animator.
func (p *Panel) Animator() *Animator { return p.animator }

// SetBanner replaces the inline action banner.
func (p *Panel) SetBanner(kind BannerKind, message string) Banner {
	banner := Banner{Kind: kind, Message: message, At: p.clock.Now()}
	p.mu.Lock()
	p.banner = &banner
	p.mu.Unlock()
	p.publish(p.currentContext(), "banner")
	return banner
}

// Banner returns the current banner, if any.
func (p *Panel) Banner() (Banner, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.banner == nil {
		return Banner{}, false
	}
	return *p.banner, true
}

// Snapshot assembles the current panel state for the locale.
func (p *Panel) Snapshot(locale string) PanelSnapshot {
	snap := PanelSnapshot{
		Code:            p.def.Code,
		Name:            p.def.NameForLocale(locale),
		Description:     p.def.DescriptionForLocale(locale),
		Category:        p.def.Category,
		IntervalSeconds: int(p.poller.State().Interval / time.Second),
		Resources:       make(map[string]ResourceSnapshot[any], len(p.resources)),
		Counters:        p.animator.Snapshot(),
		Badges:          []Badge{},
		Charts:          []RenderedChart{},
		Poller:          p.poller.State(),
		Empty:           true,
	}
	for key, res := range p.resources {
		rs := res.Snapshot()
		snap.Resources[key] = rs
		if rs.Loading {
			snap.Loading = true
		}
		if rs.HasData {
			snap.Empty = false
		}
	}

	p.mu.RLock()
	snap.Online = p.online
	snap.Badges = append(snap.Badges, p.badges...)
	specs := append([]ChartSpec(nil), p.charts...)
	if p.banner != nil {
		banner := *p.banner
		snap.Banner = &banner
	}
	p.mu.RUnlock()

	for _, spec := range specs {
		if p.renderer == nil {
			snap.Charts = append(snap.Charts, RenderedChart{ChartSpec: spec})
			continue
		}
		rendered, err := p.renderer.Render(p.def.Code, spec)
		if err != nil {
			p.logger.Warn("chart render failed", zap.String("chart", spec.Key), zap.Error(err))
			rendered = RenderedChart{ChartSpec: spec}
		}
		snap.Charts = append(snap.Charts, rendered)
	}
	return snap
}

func (p *Panel) cycle(ctx context.Context) error {
	token, err := p.settings.Token(ctx)
	if err != nil {
		return err
	}
	calls := make([]func(context.Context) (any, error), len(p.def.Endpoints))
	for i, ep := range p.def.Endpoints {
		calls[i] = func(ctx context.Context) (any, error) {
			raw, err := p.transport.Get(ctx, ep.Path, token)
			if err != nil {
				return nil, err
			}
			return ep.Decode(raw)
		}
	}
	outcomes := Settle(ctx, calls...)
	if err := ctx.Err(); err != nil {
		return err
	}

	now := p.clock.Now()
	var errs error
	for i, outcome := range outcomes {
		ep := p.def.Endpoints[i]
		res := p.resources[ep.Key]
		if outcome.OK() {
			res.Commit(outcome.Value, now)
			continue
		}
		res.Fail(outcome.Err)
		errs = errors.Join(errs, fmt.Errorf("%s: %w", ep.Path, outcome.Err))
	}

	p.mu.Lock()
	p.online = errs == nil
	p.mu.Unlock()
	p.applyView()
	p.publish(ctx, "cycle")
	return errs
}

func (p *Panel) applyView() {
	if p.def.View == nil {
		return
	}
	data := make(map[string]any, len(p.resources))
	for key, res := range p.resources {
		if value, ok := res.Data(); ok {
			data[key] = value
		}
	}
	if len(data) == 0 {
		return
	}
	view := p.def.View(data)
	for _, spec := range p.def.Counters {
		if target, ok := view.Counters[spec.Key]; ok {
			p.animator.SetTarget(spec.Key, target)
		}
	}
	p.mu.Lock()
	p.badges = append([]Badge(nil), view.Badges...)
	p.charts = append([]ChartSpec(nil), view.Charts...)
	p.mu.Unlock()
}

func (p *Panel) onFrame(frame []CounterSnapshot) {
	settled := true
	for _, c := range frame {
		if c.Animating {
			settled = false
			break
		}
	}
	if settled {
		p.publish(p.currentContext(), "counters")
	}
}

func (p *Panel) publish(ctx context.Context, reason string) {
	event := PanelEvent{Scope: p.viewer.Scope, Code: p.def.Code, Reason: reason, At: p.clock.Now()}
	if err := p.hook.PanelUpdated(ctx, event); err != nil {
		p.logger.Debug("panel hook failed", zap.String("reason", reason), zap.Error(err))
	}
}

func (p *Panel) currentContext() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lifetime
}
