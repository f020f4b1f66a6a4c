package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/goliatone/go-sentinel/components/sentinel"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SENTINEL_LOG_LEVEL", "error")
	var root cli
	parser, err := kong.New(&root, kong.Name("sentinelctl"), kong.Exit(func(int) { t.Fatalf("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	kctx.Bind(&root)

	var buf bytes.Buffer
	previous := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = previous })
	err = kctx.Run()
	return buf.String(), err
}

func TestManifestCreatesAndUpdatesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panels", "manifest.yaml")

	out, err := run(t, "manifest", path, "--code", core.PanelStatus, "--interval", "30", "--label", "en=Status")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated "+core.PanelStatus)

	_, err = run(t, "manifest", path, "--code", core.PanelBackups, "--disable", "--title", "ops")
	require.NoError(t, err)
	_, err = run(t, "manifest", path, "--code", core.PanelStatus, "--name", "État")
	require.NoError(t, err)

	doc, err := core.ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, core.ManifestVersion, doc.Version)
	assert.Equal(t, "ops", doc.Name)
	require.Len(t, doc.Panels, 2)

	backups, status := doc.Panels[0], doc.Panels[1]
	assert.Equal(t, core.PanelBackups, backups.Code)
	require.NotNil(t, backups.Enabled)
	assert.False(t, *backups.Enabled)

	assert.Equal(t, core.PanelStatus, status.Code)
	assert.Equal(t, 30, status.IntervalSeconds)
	assert.Equal(t, "État", status.Name)
	assert.Equal(t, "Status", status.NameLocalized["en"])
}

func TestManifestRejectsUnknownPanel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	_, err := run(t, "manifest", path, "--code", "nexus.unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), core.PanelStatus)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMockSessionLifecycle(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.yaml")

	_, err := run(t, "--mock", "watch", "--settings-file", settings, "--panel", core.PanelStatus, "--cycles", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out, err := run(t, "--mock", "login", "--settings-file", settings, "--email", "ops@nexus.test", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ops@nexus.test (super_admin)")
	_, err = os.Stat(settings)
	require.NoError(t, err)

	out, err = run(t, "--mock", "ask", "--settings-file", settings, "pourquoi", "les", "coûts")
	require.NoError(t, err)
	assert.Contains(t, out, "OpenAI")

	out, err = run(t, "--mock", "watch", "--settings-file", settings, "--panel", core.PanelStatus, "--cycles", "1")
	require.NoError(t, err)
	assert.Contains(t, out, core.PanelStatus)
	assert.Contains(t, out, "online")

	out, err = run(t, "--mock", "logout", "--settings-file", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "Session cleared")

	_, err = run(t, "--mock", "watch", "--settings-file", settings, "--cycles", "1")
	require.Error(t, err)
}

func TestLoginValidatesEmail(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.yaml")
	_, err := run(t, "--mock", "login", "--settings-file", settings, "--email", "nope", "--password", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestPrintSnapshotLine(t *testing.T) {
	var buf bytes.Buffer
	snap := core.PanelSnapshot{
		Code:     core.PanelCache,
		Online:   false,
		Counters: []core.CounterSnapshot{{Label: "hits", Display: "750"}},
		Badges:   []core.Badge{{Label: "ratio", Value: "75%"}},
		Banner:   &core.Banner{Kind: core.BannerError, Message: "boom"},
	}
	require.NoError(t, printSnapshot(&buf, core.PanelEvent{Code: core.PanelCache}, snap, false))
	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	for _, part := range []string{core.PanelCache, "offline", "hits=750", "ratio=75%", "[error: boom]"} {
		assert.Contains(t, line, part)
	}

	buf.Reset()
	require.NoError(t, printSnapshot(&buf, core.PanelEvent{Code: core.PanelCache}, snap, true))
	assert.Contains(t, buf.String(), `"panel":{"code":"optimization.cache"`)
}
