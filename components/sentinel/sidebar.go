package sentinel

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// SidebarState is the layout sidebar mode.
type SidebarState string

const (
	SidebarOpen      SidebarState = "open"
	SidebarCollapsed SidebarState = "collapsed"
	SidebarHidden    SidebarState = "hidden"
)

// DefaultBreakpoint is the minimum desktop viewport width in pixels.
const DefaultBreakpoint = 1024

// ParseSidebarState validates a stored sidebar value.
func ParseSidebarState(raw string) (SidebarState, bool) {
	switch state := SidebarState(strings.ToLower(strings.TrimSpace(raw))); state {
	case SidebarOpen, SidebarCollapsed, SidebarHidden:
		return state, true
	default:
		return "", false
	}
}

// SidebarSnapshot is the serialisable sidebar view.
type SidebarSnapshot struct {
	State      SidebarState `json:"state"`
	Desktop    bool         `json:"desktop"`
	Width      int          `json:"width"`
	Breakpoint int          `json:"breakpoint"`
}

// Sidebar is the per-viewer layout state machine. Desktop transitions are persisted;
// mobile state lives only in memory and collapses on navigation.
type Sidebar struct {
	mu         sync.Mutex
	settings   Settings
	breakpoint int
	width      int
	state      SidebarState
}

// NewSidebar derives the initial state for a viewport width. Desktop restores the
// stored preference when valid, mobile always starts hidden.
func NewSidebar(ctx context.Context, settings Settings, width, breakpoint int) (*Sidebar, error) {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	s := &Sidebar{settings: settings, breakpoint: breakpoint, width: width}
	state, err := s.initialState(ctx)
	if err != nil {
		return nil, err
	}
	s.state = state
	return s, nil
}

func (s *Sidebar) initialState(ctx context.Context) (SidebarState, error) {
	if !s.desktop() {
		return SidebarHidden, nil
	}
	stored, ok, err := s.settings.SidebarPreference(ctx)
	if err != nil {
		return "", fmt.Errorf("sentinel: restore sidebar: %w", err)
	}
	if ok {
		return stored, nil
	}
	return SidebarOpen, nil
}

// State returns the current state.
func (s *Sidebar) State() SidebarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Desktop reports whether the viewport is at or above the breakpoint.
func (s *Sidebar) Desktop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desktop()
}

// Snapshot copies the sidebar state.
func (s *Sidebar) Snapshot() SidebarSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SidebarSnapshot{
		State:      s.state,
		Desktop:    s.desktop(),
		Width:      s.width,
		Breakpoint: s.breakpoint,
	}
}

// Toggle flips between open and hidden. Collapsed opens.
func (s *Sidebar) Toggle(ctx context.Context) (SidebarState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := SidebarOpen
	if s.state == SidebarOpen {
		next = SidebarHidden
	}
	return s.transition(ctx, next)
}

// Collapse switches a desktop sidebar to the icon rail. It is a no-op on mobile.
func (s *Sidebar) Collapse(ctx context.Context) (SidebarState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.desktop() {
		return s.state, nil
	}
	return s.transition(ctx, SidebarCollapsed)
}

// Navigate records a route change. Mobile sidebars close.
func (s *Sidebar) Navigate(ctx context.Context) (SidebarState, error) {
	return s.closeOnMobile(ctx)
}

// CloseOverlay handles a click on the mobile backdrop.
func (s *Sidebar) CloseOverlay(ctx context.Context) (SidebarState, error) {
	return s.closeOnMobile(ctx)
}

// Resize updates the viewport width. Crossing the breakpoint re-derives the state.
func (s *Sidebar) Resize(ctx context.Context, width int) (SidebarState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasDesktop := s.desktop()
	s.width = width
	if wasDesktop == s.desktop() {
		return s.state, nil
	}
	state, err := s.initialState(ctx)
	if err != nil {
		return s.state, err
	}
	s.state = state
	return s.state, nil
}

func (s *Sidebar) closeOnMobile(ctx context.Context) (SidebarState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.desktop() {
		return s.state, nil
	}
	return s.transition(ctx, SidebarHidden)
}

func (s *Sidebar) transition(ctx context.Context, next SidebarState) (SidebarState, error) {
	s.state = next
	if !s.desktop() {
		return s.state, nil
	}
	if err := s.settings.SaveSidebarPreference(ctx, next); err != nil {
		return s.state, fmt.Errorf("sentinel: persist sidebar: %w", err)
	}
	return s.state, nil
}

func (s *Sidebar) desktop() bool {
	return s.width >= s.breakpoint
}
