package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

var errMissingRenderer = errors.New("sentinel: renderer not configured")

// NavItem is one sidebar navigation entry.
type NavItem struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Icon   string `json:"icon,omitempty"`
	Active bool   `json:"active,omitempty"`
}

// Controller orchestrates page rendering for the operator dashboard.
type Controller struct {
	service  *Service
	renderer Renderer
}

// NewController wires the service and an optional renderer into a controller.
func NewController(service *Service, renderer Renderer) *Controller {
	return &Controller{service: service, renderer: renderer}
}

// Service returns the wrapped service.
func (c *Controller) Service() *Service { return c.service }

// Page resolves the dashboard page for a viewer.
func (c *Controller) Page(ctx context.Context, viewer Viewer, session Session) (DashboardPage, error) {
	if c.service == nil {
		return DashboardPage{}, nil
	}
	return c.service.Page(ctx, viewer, session)
}

// Navigation lists the dashboard entry plus one anchor per enabled panel.
func (c *Controller) Navigation(basePath, locale string) []NavItem {
	items := []NavItem{{Label: "Sentinel", Path: basePath + "/sentinel", Icon: "shield", Active: true}}
	if c.service == nil {
		return items
	}
	for _, def := range c.service.Registry().Definitions() {
		items = append(items, NavItem{
			Label: def.NameForLocale(locale),
			Path:  basePath + "/sentinel#" + def.Code,
			Icon:  def.Category,
		})
	}
	return items
}

// RenderPage renders the dashboard HTML.
func (c *Controller) RenderPage(ctx context.Context, viewer Viewer, session Session, basePath string, out ...io.Writer) (string, error) {
	if c.renderer == nil {
		return "", errMissingRenderer
	}
	page, err := c.Page(ctx, viewer, session)
	if err != nil {
		return "", err
	}
	data, err := templateData(page)
	if err != nil {
		return "", err
	}
	nav, err := templateData(map[string]any{"items": c.Navigation(basePath, viewer.Locale)})
	if err != nil {
		return "", err
	}
	data["base_path"] = basePath
	data["navigation"] = nav["items"]
	data["width_cookie"] = WidthCookie
	data["width_header"] = WidthHeader
	return c.renderer.Render("sentinel", data, out...)
}

// RenderLogin renders the login form.
func (c *Controller) RenderLogin(basePath, email, message string, out ...io.Writer) (string, error) {
	if c.renderer == nil {
		return "", errMissingRenderer
	}
	return c.renderer.Render("login", map[string]any{
		"base_path": basePath,
		"email":     email,
		"error":     message,
	}, out...)
}

func templateData(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
