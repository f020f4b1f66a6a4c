package sentinel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	core "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/pkg/config"
	"github.com/goliatone/go-sentinel/pkg/nexusapi"
)

func mockConfig() config.Config {
	return config.Config{
		Env:           "development",
		Mock:          true,
		BasePath:      "/admin",
		Breakpoint:    core.DefaultBreakpoint,
		Settings:      config.SettingsMemory,
		ActionsPerMin: 30,
	}
}

func TestNewUsesMockTransport(t *testing.T) {
	app, err := New(mockConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	_, ok := app.Transport.(*nexusapi.MockClient)
	assert.True(t, ok, "expected mock transport, got %T", app.Transport)
	assert.NotNil(t, app.Controller)
	assert.NotNil(t, app.Executor)
	assert.NotNil(t, app.Metrics)
}

func TestNewBuildsLiveClient(t *testing.T) {
	cfg := mockConfig()
	cfg.Mock = false
	cfg.APIURL = "https://nexus.example"
	app, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	client, ok := app.Transport.(*nexusapi.Client)
	require.True(t, ok)
	assert.Equal(t, "https://nexus.example", client.BaseURL())
}

func TestNewRejectsUnknownSettingsBackend(t *testing.T) {
	cfg := mockConfig()
	cfg.Settings = "etcd"
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}

func TestNewRejectsMissingManifest(t *testing.T) {
	cfg := mockConfig()
	cfg.Manifest = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load manifest")
}

func TestLoginPersistsSessionInRedis(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := mockConfig()
	cfg.Settings = config.SettingsRedis
	cfg.RedisAddr = server.Addr()

	app, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	handler := app.Handler()

	body := strings.NewReader(`{"email":"ops@nexus.test","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(core.SessionHeader, "op-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, err := app.Service.Settings("op-1").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nexusapi.DemoToken, token)
	assert.NotEmpty(t, server.Keys())

	decision := app.Service.Authorize(context.Background(), "op-1")
	assert.True(t, decision.Allowed)
}

func TestHandlerGatesPage(t *testing.T) {
	app, err := New(mockConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	req := httptest.NewRequest(http.MethodGet, "/admin/sentinel/page", nil)
	req.Header.Set(core.SessionHeader, "anonymous")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "/admin/login", payload["redirect"])
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCloseIsIdempotent(t *testing.T) {
	app, err := New(mockConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
}

func TestEmbeddedTemplatesRenderOutsideTheirPackage(t *testing.T) {
	app, err := New(mockConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	html, err := app.Controller.RenderLogin("/admin", "ops@nexus.test", "")
	require.NoError(t, err)
	assert.Contains(t, html, "/admin/login")
}

type closingTransport struct {
	core.Transport
	closed int
}

func (c *closingTransport) Close() error {
	c.closed++
	return nil
}

func TestNewReleasesResourcesWhenTemplatesFail(t *testing.T) {
	transport := &closingTransport{Transport: nexusapi.NewMockClient(nexusapi.DefaultMockData())}
	broken := fstest.MapFS{"templates/login.html": {Data: []byte("login")}}

	app, err := New(mockConfig(), nil, WithTransport(transport), WithTemplates(broken))
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "templates")
	assert.Equal(t, 1, transport.closed)
}
