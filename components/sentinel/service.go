package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingTransport = errors.New("sentinel: transport not configured")
	errServiceClosed    = errors.New("sentinel: service closed")
	errMissingQuestion  = errors.New("sentinel: question is required")
	errMissingBackup    = errors.New("sentinel: backup name is required")
	errMissingCommand   = errors.New("sentinel: console command is required")
	errMissingToken     = errors.New("sentinel: login response carried no token")
)

// ErrUnknownPanel reports a panel code missing from the registry.
var ErrUnknownPanel = errors.New("sentinel: unknown panel")

// ErrPanelNotMounted reports an operation on a panel the viewer has not opened.
var ErrPanelNotMounted = errors.New("sentinel: panel not mounted")

// Options configures the sentinel Service. Every collaborator is provided via
// interface so applications can swap implementations.
type Options struct {
	Settings        SettingsStore
	Transport       Transport
	Registry        *Registry
	ConfigValidator ConfigValidator
	RefreshHook     RefreshHook
	Telemetry       Telemetry
	Logger          *zap.Logger
	Clock           Clock
	Charts          *ChartRenderer
	Gate            Gate
	FAQ             *FAQResponder
	Breakpoint      int
	// IdleTimeout unmounts a viewer's panels once the scope has gone this long without
	// a request or a live stream. Zero means DefaultIdleTimeout; negative disables it.
	IdleTimeout time.Duration
}

// DefaultIdleTimeout is how long an unwatched viewer keeps its pollers.
const DefaultIdleTimeout = 2 * time.Minute

// StreamWatcher is implemented by refresh hooks that know whether a scope still has a
// live event stream. A watched scope never goes idle.
type StreamWatcher interface {
	Watching(scope string) bool
}

// Service orchestrates panels, sidebars and sessions per viewer scope.
type Service struct {
	opts Options

	lifetime context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	closed  bool
	viewers map[string]*viewerState
}

type viewerState struct {
	panels   map[string]*Panel
	sidebar  *Sidebar
	lastSeen time.Time
}

// NewService builds a Service instance with safe defaults.
func NewService(opts Options) *Service {
	if opts.Settings == nil {
		opts.Settings = NewInMemorySettingsStore()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.ConfigValidator == nil {
		opts.ConfigValidator = NewJSONSchemaValidator()
	}
	if opts.RefreshHook == nil {
		opts.RefreshHook = noopRefreshHook{}
	}
	if opts.Charts == nil {
		opts.Charts = NewChartRenderer()
	}
	if opts.FAQ == nil {
		opts.FAQ = NewFAQResponder(nil)
	}
	if opts.Breakpoint <= 0 {
		opts.Breakpoint = DefaultBreakpoint
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	opts.Gate = NewGate(opts.Gate.RequiredRole, opts.Gate.LoginPath)
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	opts.Logger = normalizeLogger(opts.Logger)
	opts.Clock = normalizeClock(opts.Clock)
	lifetime, cancel := context.WithCancel(context.Background())
	s := &Service{
		opts:     opts,
		lifetime: lifetime,
		cancel:   cancel,
		viewers:  make(map[string]*viewerState),
	}
	if opts.IdleTimeout > 0 {
		go s.reapLoop(opts.Clock.NewTicker(reapInterval(opts.IdleTimeout)))
	}
	return s
}

func reapInterval(idle time.Duration) time.Duration {
	every := idle / 4
	if every < time.Second {
		every = time.Second
	}
	return every
}

func (s *Service) reapLoop(ticker Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-s.lifetime.Done():
			return
		case <-ticker.C():
			s.ReapIdle(s.lifetime)
		}
	}
}

// ReapIdle unmounts every viewer that has been idle for IdleTimeout and forgets its
// state. It returns the reaped scopes in sorted order.
func (s *Service) ReapIdle(ctx context.Context) []string {
	if s.opts.IdleTimeout <= 0 {
		return nil
	}
	watcher, _ := s.opts.RefreshHook.(StreamWatcher)
	now := s.opts.Clock.Now()

	s.mu.Lock()
	var (
		scopes []string
		panels []*Panel
	)
	for scope, state := range s.viewers {
		if watcher != nil && watcher.Watching(scope) {
			state.lastSeen = now
			continue
		}
		if now.Sub(state.lastSeen) < s.opts.IdleTimeout {
			continue
		}
		for _, panel := range state.panels {
			panels = append(panels, panel)
		}
		delete(s.viewers, scope)
		scopes = append(scopes, scope)
	}
	s.mu.Unlock()

	for _, panel := range panels {
		panel.Stop()
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		s.opts.Logger.Info("viewer idle, panels unmounted", zap.String("scope", scope))
		s.recordTelemetry(ctx, "sentinel.viewer.idle", map[string]any{"scope": scope})
	}
	return scopes
}

// Registry exposes the panel registry.
func (s *Service) Registry() *Registry { return s.opts.Registry }

// Gate exposes the configured auth gate.
func (s *Service) Gate() Gate { return s.opts.Gate }

// Settings returns the typed settings for a scope.
func (s *Service) Settings(scope string) Settings {
	return NewSettings(s.opts.Settings, scope)
}

// Authorize runs the auth gate against the viewer's stored session.
func (s *Service) Authorize(ctx context.Context, scope string) GateDecision {
	decision := s.opts.Gate.Check(ctx, s.Settings(scope))
	s.recordTelemetry(ctx, "sentinel.gate", map[string]any{
		"scope":   scope,
		"allowed": decision.Allowed,
		"reason":  string(decision.Reason),
	})
	return decision
}

// Mount opens a panel for the viewer and starts its poller. Mounting an open panel
// returns the existing one.
func (s *Service) Mount(ctx context.Context, viewer Viewer, code string, config map[string]any) (*Panel, error) {
	if s.opts.Transport == nil {
		return nil, errMissingTransport
	}
	if strings.TrimSpace(viewer.Scope) == "" {
		return nil, errMissingScope
	}
	def, ok := s.opts.Registry.Definition(code)
	if !ok || def.Disabled {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, code)
	}
	if err := s.opts.ConfigValidator.Validate(def, config); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errServiceClosed
	}
	state := s.viewerLocked(viewer.Scope)
	if panel, ok := state.panels[code]; ok {
		return panel, nil
	}
	panel, err := newPanel(panelConfig{
		def:       def,
		viewer:    viewer,
		settings:  s.Settings(viewer.Scope),
		transport: s.opts.Transport,
		clock:     s.opts.Clock,
		telemetry: s.opts.Telemetry,
		logger:    s.opts.Logger,
		hook:      s.opts.RefreshHook,
		charts:    s.opts.Charts,
		interval:  intervalFromConfig(config),
	})
	if err != nil {
		return nil, err
	}
	if paused, _ := config["paused"].(bool); paused {
		panel.Pause()
	}
	if err := panel.Start(s.lifetime); err != nil {
		return nil, err
	}
	state.panels[code] = panel
	s.recordTelemetry(ctx, "sentinel.panel.mount", map[string]any{"scope": viewer.Scope, "panel": code})
	return panel, nil
}

// Unmount stops a viewer's panel and discards its resources.
func (s *Service) Unmount(ctx context.Context, scope, code string) error {
	s.mu.Lock()
	state, ok := s.viewers[scope]
	var panel *Panel
	if ok {
		panel = state.panels[code]
		delete(state.panels, code)
	}
	s.mu.Unlock()
	if panel == nil {
		return fmt.Errorf("%w: %s", ErrPanelNotMounted, code)
	}
	panel.Stop()
	s.recordTelemetry(ctx, "sentinel.panel.unmount", map[string]any{"scope": scope, "panel": code})
	return nil
}

// UnmountAll stops every panel of a viewer.
func (s *Service) UnmountAll(ctx context.Context, scope string) {
	s.mu.Lock()
	state, ok := s.viewers[scope]
	var panels []*Panel
	if ok {
		for code, panel := range state.panels {
			panels = append(panels, panel)
			delete(state.panels, code)
		}
	}
	s.mu.Unlock()
	for _, panel := range panels {
		panel.Stop()
	}
	if len(panels) > 0 {
		s.recordTelemetry(ctx, "sentinel.panel.unmount_all", map[string]any{"scope": scope, "count": len(panels)})
	}
}

// Panel returns a mounted panel.
func (s *Service) Panel(scope, code string) (*Panel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.viewers[scope]
	if !ok {
		return nil, false
	}
	panel, ok := state.panels[code]
	if ok {
		state.lastSeen = s.opts.Clock.Now()
	}
	return panel, ok
}

// MountedPanels lists the codes of a viewer's open panels.
func (s *Service) MountedPanels(scope string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.viewers[scope]
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(state.panels))
	for _, def := range s.opts.Registry.Definitions() {
		if _, ok := state.panels[def.Code]; ok {
			codes = append(codes, def.Code)
		}
	}
	return codes
}

// Snapshot returns the panel state, mounting the panel on first read.
func (s *Service) Snapshot(ctx context.Context, viewer Viewer, code string) (PanelSnapshot, error) {
	panel, ok := s.Panel(viewer.Scope, code)
	if !ok {
		var err error
		panel, err = s.Mount(ctx, viewer, code, nil)
		if err != nil {
			return PanelSnapshot{}, err
		}
	}
	return panel.Snapshot(viewer.Locale), nil
}

// DashboardPage is everything the operator page renders.
type DashboardPage struct {
	Viewer  Viewer          `json:"viewer"`
	User    SessionUser     `json:"user"`
	Sidebar SidebarSnapshot `json:"sidebar"`
	Panels  []PanelSnapshot `json:"panels"`
}

// Page mounts every enabled panel for the viewer and returns their snapshots.
func (s *Service) Page(ctx context.Context, viewer Viewer, session Session) (DashboardPage, error) {
	sidebar, err := s.Sidebar(ctx, viewer)
	if err != nil {
		return DashboardPage{}, err
	}
	page := DashboardPage{
		Viewer:  viewer,
		User:    session.User,
		Sidebar: sidebar.Snapshot(),
		Panels:  []PanelSnapshot{},
	}
	for _, def := range s.opts.Registry.Definitions() {
		snap, err := s.Snapshot(ctx, viewer, def.Code)
		if err != nil {
			return DashboardPage{}, err
		}
		page.Panels = append(page.Panels, snap)
	}
	return page, nil
}

// Refresh asks a mounted panel for an immediate cycle.
func (s *Service) Refresh(ctx context.Context, scope, code string) error {
	panel, ok := s.Panel(scope, code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPanelNotMounted, code)
	}
	s.recordTelemetry(ctx, "sentinel.panel.refresh", map[string]any{"scope": scope, "panel": code})
	return panel.Refresh(ctx)
}

// Pause suppresses a panel's scheduled cycles.
func (s *Service) Pause(ctx context.Context, scope, code string) error {
	panel, ok := s.Panel(scope, code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPanelNotMounted, code)
	}
	panel.Pause()
	s.recordTelemetry(ctx, "sentinel.panel.pause", map[string]any{"scope": scope, "panel": code})
	return nil
}

// Resume re-enables a panel's scheduled cycles.
func (s *Service) Resume(ctx context.Context, scope, code string) error {
	panel, ok := s.Panel(scope, code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPanelNotMounted, code)
	}
	panel.Resume()
	s.recordTelemetry(ctx, "sentinel.panel.resume", map[string]any{"scope": scope, "panel": code})
	return nil
}

// Sidebar returns the viewer's sidebar, creating it from storage on first use. A width
// change crossing the breakpoint re-derives the state.
func (s *Service) Sidebar(ctx context.Context, viewer Viewer) (*Sidebar, error) {
	if strings.TrimSpace(viewer.Scope) == "" {
		return nil, errMissingScope
	}
	s.mu.Lock()
	state := s.viewerLocked(viewer.Scope)
	sidebar := state.sidebar
	s.mu.Unlock()

	if sidebar == nil {
		created, err := NewSidebar(ctx, s.Settings(viewer.Scope), viewer.Width, s.opts.Breakpoint)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if state.sidebar == nil {
			state.sidebar = created
		}
		sidebar = state.sidebar
		s.mu.Unlock()
		return sidebar, nil
	}
	if viewer.Width > 0 && viewer.Width != sidebar.Snapshot().Width {
		if _, err := sidebar.Resize(ctx, viewer.Width); err != nil {
			return nil, err
		}
	}
	return sidebar, nil
}

// SidebarActionKind names a sidebar transition.
type SidebarActionKind string

const (
	SidebarToggle       SidebarActionKind = "toggle"
	SidebarCollapse     SidebarActionKind = "collapse"
	SidebarNavigate     SidebarActionKind = "navigate"
	SidebarCloseOverlay SidebarActionKind = "close"
	SidebarResize       SidebarActionKind = "resize"
)

// SidebarAction applies a transition to the viewer's sidebar.
func (s *Service) SidebarAction(ctx context.Context, viewer Viewer, action SidebarActionKind) (SidebarSnapshot, error) {
	sidebar, err := s.Sidebar(ctx, viewer)
	if err != nil {
		return SidebarSnapshot{}, err
	}
	switch action {
	case SidebarToggle:
		_, err = sidebar.Toggle(ctx)
	case SidebarCollapse:
		_, err = sidebar.Collapse(ctx)
	case SidebarNavigate:
		_, err = sidebar.Navigate(ctx)
	case SidebarCloseOverlay:
		_, err = sidebar.CloseOverlay(ctx)
	case SidebarResize:
		_, err = sidebar.Resize(ctx, viewer.Width)
	default:
		return sidebar.Snapshot(), fmt.Errorf("sentinel: unknown sidebar action %q", action)
	}
	snap := sidebar.Snapshot()
	s.recordTelemetry(ctx, "sentinel.sidebar", map[string]any{
		"scope":  viewer.Scope,
		"action": string(action),
		"state":  string(snap.State),
	})
	return snap, err
}

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       Text            `json:"token"`
	AccessToken Text            `json:"access_token"`
	User        json.RawMessage `json:"user"`
	Admin       json.RawMessage `json:"admin"`
}

// Login authenticates against the backend and stores the session for the scope.
func (s *Service) Login(ctx context.Context, scope string, req LoginRequest) (Session, error) {
	if s.opts.Transport == nil {
		return Session{}, errMissingTransport
	}
	raw, err := s.opts.Transport.Post(ctx, PathLogin, "", req)
	if err != nil {
		s.recordTelemetry(ctx, "sentinel.login.failed", map[string]any{"scope": scope})
		return Session{}, err
	}
	resp, err := DecodeObject[loginResponse](raw)
	if err != nil {
		return Session{}, err
	}
	token := firstText(resp.Token, resp.AccessToken).String()
	if token == "" {
		return Session{}, errMissingToken
	}
	userRaw := resp.User
	if isNull(userRaw) {
		userRaw = resp.Admin
	}
	user, err := decodeSessionUser(userRaw)
	if err != nil {
		return Session{}, err
	}
	session := Session{Token: token, User: user}
	if err := s.Settings(scope).SaveSession(ctx, session); err != nil {
		return Session{}, err
	}
	s.recordTelemetry(ctx, "sentinel.login", map[string]any{"scope": scope, "role": user.Role})
	return session, nil
}

// Logout clears the stored session and unmounts the viewer's panels.
func (s *Service) Logout(ctx context.Context, scope string) error {
	s.UnmountAll(ctx, scope)
	if err := s.Settings(scope).ClearSession(ctx); err != nil {
		return err
	}
	s.recordTelemetry(ctx, "sentinel.logout", map[string]any{"scope": scope})
	return nil
}

// Explain asks the backend explainer first and falls back to the local FAQ.
func (s *Service) Explain(ctx context.Context, scope, question string) (FAQAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return FAQAnswer{}, errMissingQuestion
	}
	if s.opts.Transport != nil {
		token, err := s.Settings(scope).Token(ctx)
		if err == nil && token != "" {
			raw, err := s.opts.Transport.Post(ctx, PathExplain, token, map[string]string{"question": question})
			if err == nil {
				result, derr := DecodeExplain(raw)
				if text := result.Text(); derr == nil && text != "" {
					s.recordTelemetry(ctx, "sentinel.explain", map[string]any{"scope": scope, "source": "backend"})
					return FAQAnswer{Topic: "backend", Text: text, Source: "backend"}, nil
				}
			} else {
				s.opts.Logger.Debug("explainer unavailable, using local answers", zap.String("scope", scope), zap.Error(err))
			}
		}
	}
	answer := s.opts.FAQ.Answer(question)
	s.recordTelemetry(ctx, "sentinel.explain", map[string]any{"scope": scope, "source": "local", "topic": answer.Topic})
	return answer, nil
}

// Close stops every panel of every viewer.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var panels []*Panel
	for _, state := range s.viewers {
		for _, panel := range state.panels {
			panels = append(panels, panel)
		}
		state.panels = map[string]*Panel{}
	}
	s.mu.Unlock()
	s.cancel()
	for _, panel := range panels {
		panel.Stop()
	}
}

func decodeSessionUser(raw json.RawMessage) (SessionUser, error) {
	if isNull(raw) {
		return SessionUser{}, nil
	}
	user, err := DecodeObject[struct {
		ID    Text `json:"id"`
		Role  Text `json:"role"`
		Nom   Text `json:"nom"`
		Name  Text `json:"name"`
		Email Text `json:"email"`
	}](raw)
	if err != nil {
		return SessionUser{}, err
	}
	return SessionUser{
		ID:    user.ID.String(),
		Role:  user.Role.String(),
		Nom:   firstText(user.Nom, user.Name).String(),
		Email: user.Email.String(),
	}, nil
}

func (s *Service) viewerLocked(scope string) *viewerState {
	state, ok := s.viewers[scope]
	if !ok {
		state = &viewerState{panels: map[string]*Panel{}}
		s.viewers[scope] = state
	}
	state.lastSeen = s.opts.Clock.Now()
	return state
}

func (s *Service) recordTelemetry(ctx context.Context, event string, payload map[string]any) {
	s.opts.Telemetry.Record(ctx, event, payload)
}

func intervalFromConfig(config map[string]any) time.Duration {
	switch v := config["interval_seconds"].(type) {
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return 0
}
