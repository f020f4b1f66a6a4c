package sentinel

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"testing/fstest"
)

type stubRenderer struct {
	lastTemplate string
	lastPayload  map[string]any
	err          error
}

func (r *stubRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	r.lastTemplate = name
	if payload, ok := data.(map[string]any); ok {
		r.lastPayload = payload
	}
	if len(out) > 0 && out[0] != nil {
		out[0].Write([]byte("<html></html>"))
	}
	return "<html></html>", r.err
}

func TestControllerRenderPage(t *testing.T) {
	f := newServiceFixture(t)
	f.transport.on(PathDashboard, fakeResponse{body: dashboardFixture})
	registry := NewEmptyRegistry()
	for _, def := range DefaultPanelDefinitions() {
		if def.Code == PanelDashboard {
			if err := registry.RegisterDefinition(def); err != nil {
				t.Fatalf("register: %v", err)
			}
		}
	}
	f.service.opts.Registry = registry
	seedSession(f.store, "op", RoleSuperAdmin)

	renderer := &stubRenderer{}
	controller := NewController(f.service, renderer)
	decision := f.service.Authorize(context.Background(), "op")

	var buf bytes.Buffer
	if _, err := controller.RenderPage(context.Background(), Viewer{Scope: "op", Width: 1440}, decision.Session, "/admin", &buf); err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if renderer.lastTemplate != "sentinel" {
		t.Fatalf("expected sentinel template, got %s", renderer.lastTemplate)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected rendered output")
	}
	if renderer.lastPayload["base_path"] != "/admin" {
		t.Fatalf("expected base path in payload, got %v", renderer.lastPayload["base_path"])
	}
	panels, ok := renderer.lastPayload["panels"].([]any)
	if !ok || len(panels) != 1 {
		t.Fatalf("expected one panel in payload, got %#v", renderer.lastPayload["panels"])
	}
	nav, ok := renderer.lastPayload["navigation"].([]any)
	if !ok || len(nav) != 2 {
		t.Fatalf("expected dashboard link plus one panel anchor, got %#v", renderer.lastPayload["navigation"])
	}
	sidebar, _ := renderer.lastPayload["sidebar"].(map[string]any)
	if sidebar["state"] != "open" {
		t.Fatalf("expected open sidebar, got %v", sidebar["state"])
	}
}

func TestControllerNavigationUsesLocale(t *testing.T) {
	controller := NewController(NewService(Options{Transport: newFakeTransport()}), nil)
	items := controller.Navigation("/admin", "en")
	if len(items) != 10 {
		t.Fatalf("expected 10 navigation items, got %d", len(items))
	}
	if items[1].Label != "Overview" || items[1].Path != "/admin/sentinel#"+PanelDashboard {
		t.Fatalf("unexpected first panel item %+v", items[1])
	}
}

func TestControllerRequiresRenderer(t *testing.T) {
	controller := NewController(nil, nil)
	if _, err := controller.RenderLogin("/admin", "", ""); err == nil {
		t.Fatalf("expected missing renderer error")
	}
	renderer := &stubRenderer{}
	controller = NewController(nil, renderer)
	if _, err := controller.RenderLogin("/admin", "ada@nexus.test", "Identifiants invalides"); err != nil {
		t.Fatalf("RenderLogin returned error: %v", err)
	}
	if renderer.lastTemplate != "login" || renderer.lastPayload["error"] != "Identifiants invalides" {
		t.Fatalf("unexpected login render %s %v", renderer.lastTemplate, renderer.lastPayload)
	}
}

func TestNewTemplateRendererRequiresPages(t *testing.T) {
	if _, err := NewTemplateRenderer(); err != nil {
		t.Fatalf("embedded templates should load: %v", err)
	}
	partial := fstest.MapFS{"templates/login.html": {Data: []byte("login")}}
	if _, err := NewTemplateRenderer(partial); err == nil {
		t.Fatalf("expected missing sentinel page to fail")
	}
}

func TestRenderedPageDrivesSidebarAndLiveUpdates(t *testing.T) {
	f := newServiceFixture(t)
	f.transport.on(PathDashboard, fakeResponse{body: dashboardFixture})
	registry := NewEmptyRegistry()
	for _, def := range DefaultPanelDefinitions() {
		if def.Code == PanelDashboard {
			if err := registry.RegisterDefinition(def); err != nil {
				t.Fatalf("register: %v", err)
			}
		}
	}
	f.service.opts.Registry = registry
	seedSession(f.store, "op", RoleSuperAdmin)
	if err := f.store.Set(context.Background(), "op", KeySidebar, string(SidebarOpen)); err != nil {
		t.Fatalf("seed sidebar: %v", err)
	}

	renderer, err := NewTemplateRenderer()
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}
	controller := NewController(f.service, renderer)
	decision := f.service.Authorize(context.Background(), "op")
	html, err := controller.RenderPage(context.Background(), Viewer{Scope: "op", Width: 1440}, decision.Session, "/admin")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	for _, want := range []string{
		`class="sidebar-open"`,
		`data-desktop="1"`,
		`"/sentinel/sidebar"`,
		`"/sentinel/panels/"`,
		`sentinel_width=`,
		`X-Sentinel-Width`,
		`data-code="` + PanelDashboard + `"`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
	if strings.Contains(html, "location.reload") {
		t.Fatalf("page must update panels in place instead of reloading")
	}
}
