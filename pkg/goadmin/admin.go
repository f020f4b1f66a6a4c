package goadmin

import (
	"context"
	"errors"
	"fmt"

	core "github.com/goliatone/go-sentinel/components/sentinel"
)

// MenuBuilder ensures sentinel entries exist within the admin navigation.
type MenuBuilder interface {
	EnsureMenuItem(ctx context.Context, menuCode string, item MenuItem) error
}

// MenuItem captures sentinel link metadata.
type MenuItem struct {
	Label    string
	Route    string
	Icon     string
	Position int
	Parent   string
}

// Config wires the sentinel controller into an admin shell.
type Config struct {
	EnableSentinel bool
	MenuCode       string
	MenuBuilder    MenuBuilder
	Controller     *core.Controller
	BasePath       string
	// Locale picks localized panel names; empty keeps the default names.
	Locale string
	// Position is the slot of the root entry; panel anchors follow it.
	Position int
	// PanelAnchors also seeds one child entry per enabled panel.
	PanelAnchors bool
}

// Admin exposes helpers for go-admin style applications.
type Admin struct {
	cfg Config
}

// New creates an Admin helper that can seed sentinel menus.
func New(cfg Config) (*Admin, error) {
	if cfg.EnableSentinel && cfg.Controller == nil {
		return nil, errors.New("goadmin: sentinel controller is required when enabled")
	}
	if cfg.MenuCode == "" {
		cfg.MenuCode = "admin.main"
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/admin"
	}
	return &Admin{cfg: cfg}, nil
}

// Sentinel exposes the configured service when enabled.
func (a *Admin) Sentinel() *core.Service {
	if !a.cfg.EnableSentinel {
		return nil
	}
	return a.cfg.Controller.Service()
}

// MenuItems converts the controller navigation into admin menu entries.
func (a *Admin) MenuItems() []MenuItem {
	if !a.cfg.EnableSentinel {
		return nil
	}
	nav := a.cfg.Controller.Navigation(a.cfg.BasePath, a.cfg.Locale)
	if len(nav) == 0 {
		return nil
	}
	root := nav[0]
	items := []MenuItem{{
		Label:    root.Label,
		Route:    root.Path,
		Icon:     root.Icon,
		Position: a.cfg.Position,
	}}
	if !a.cfg.PanelAnchors {
		return items
	}
	for i, entry := range nav[1:] {
		items = append(items, MenuItem{
			Label:    entry.Label,
			Route:    entry.Path,
			Icon:     entry.Icon,
			Position: i + 1,
			Parent:   root.Path,
		})
	}
	return items
}

// Bootstrap seeds menu entries when sentinel support is enabled.
func (a *Admin) Bootstrap(ctx context.Context) error {
	if !a.cfg.EnableSentinel || a.cfg.MenuBuilder == nil {
		return nil
	}
	for _, item := range a.MenuItems() {
		if err := a.cfg.MenuBuilder.EnsureMenuItem(ctx, a.cfg.MenuCode, item); err != nil {
			return fmt.Errorf("goadmin: ensure menu item %s: %w", item.Route, err)
		}
	}
	return nil
}
