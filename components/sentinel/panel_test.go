package sentinel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPanel(t *testing.T, transport Transport, clock Clock, hook RefreshHook) *Panel {
	t.Helper()
	store := NewInMemorySettingsStore()
	seedSession(store, "viewer-1", RoleSuperAdmin)
	var def PanelDefinition
	for _, candidate := range DefaultPanelDefinitions() {
		if candidate.Code == PanelDashboard {
			def = candidate
		}
	}
	panel, err := newPanel(panelConfig{
		def:       def,
		viewer:    Viewer{Scope: "viewer-1", Width: 1440},
		settings:  NewSettings(store, "viewer-1"),
		transport: transport,
		clock:     clock,
		hook:      hook,
	})
	require.NoError(t, err)
	t.Cleanup(panel.Stop)
	return panel
}

func TestPanelFailedCycleKeepsLastGoodData(t *testing.T) {
	clock := newFakeClock()
	transport := newFakeTransport().on(PathDashboard,
		fakeResponse{body: dashboardFixture},
		fakeResponse{err: errors.New("502 bad gateway")},
		fakeResponse{body: `{"data":{"summary":{"totalTenants":13,"totalCalls":341,"totalCost":60}}}`},
	)
	panel := newTestPanel(t, transport, clock, nil)
	ctx := context.Background()

	initial := panel.Snapshot("")
	assert.True(t, initial.Loading)
	assert.True(t, initial.Empty)

	require.NoError(t, panel.RunCycle(ctx))
	first := panel.Snapshot("")
	assert.True(t, first.Online)
	assert.False(t, first.Loading)
	res := first.Resources["dashboard"]
	require.True(t, res.HasData)
	assert.Equal(t, float64(12), res.Data.(DashboardOverview).Summary.TotalTenants.Float())

	require.Error(t, panel.RunCycle(ctx))
	second := panel.Snapshot("")
	assert.False(t, second.Online)
	res = second.Resources["dashboard"]
	require.True(t, res.HasData)
	assert.Equal(t, float64(12), res.Data.(DashboardOverview).Summary.TotalTenants.Float())
	assert.Contains(t, res.Error, "502")
	assert.Equal(t, first.Resources["dashboard"].LastFetchedAt, res.LastFetchedAt)

	clock.Advance(30 * time.Second)
	require.NoError(t, panel.RunCycle(ctx))
	third := panel.Snapshot("")
	assert.True(t, third.Online)
	res = third.Resources["dashboard"]
	assert.Empty(t, res.Error)
	assert.Equal(t, float64(13), res.Data.(DashboardOverview).Summary.TotalTenants.Float())
	assert.Equal(t, 0, third.Poller.ConsecutiveErrs)
	assert.Equal(t, 3, third.Poller.Cycles)
}

func TestPanelSendsStoredToken(t *testing.T) {
	transport := newFakeTransport().on(PathDashboard, fakeResponse{body: dashboardFixture})
	panel := newTestPanel(t, transport, newFakeClock(), nil)
	require.NoError(t, panel.RunCycle(context.Background()))
	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.NotEmpty(t, transport.tokens)
	assert.Equal(t, "token-viewer-1", transport.tokens[0])
}

func TestPanelStopDiscardsInFlightResponse(t *testing.T) {
	transport := newFakeTransport().on(PathDashboard, fakeResponse{body: dashboardFixture})
	transport.block = make(chan struct{})
	hook := &recordingHook{}
	panel := newTestPanel(t, transport, newFakeClock(), hook)

	require.NoError(t, panel.Start(context.Background()))
	require.Eventually(t, func() bool { return transport.getCount(PathDashboard) == 1 }, time.Second, time.Millisecond)
	panel.Stop()
	close(transport.block)

	snap := panel.Snapshot("")
	assert.False(t, snap.Resources["dashboard"].HasData)
	assert.NotContains(t, hook.reasons(), "cycle")
}

func TestPanelBannerPersistsAcrossCycles(t *testing.T) {
	transport := newFakeTransport().on(PathDashboard, fakeResponse{body: dashboardFixture})
	hook := &recordingHook{}
	panel := newTestPanel(t, transport, newFakeClock(), hook)

	panel.SetBanner(BannerSuccess, "Sauvegarde créée : nightly")
	require.NoError(t, panel.RunCycle(context.Background()))
	require.NoError(t, panel.RunCycle(context.Background()))

	banner, ok := panel.Banner()
	require.True(t, ok)
	assert.Equal(t, BannerSuccess, banner.Kind)
	assert.Equal(t, "Sauvegarde créée : nightly", banner.Message)

	panel.SetBanner(BannerError, "Échec de la sauvegarde : disque plein")
	snap := panel.Snapshot("")
	require.NotNil(t, snap.Banner)
	assert.Equal(t, BannerError, snap.Banner.Kind)
	assert.Contains(t, hook.reasons(), "banner")
}

func TestPanelSnapshotLocalizesName(t *testing.T) {
	panel := newTestPanel(t, newFakeTransport(), newFakeClock(), nil)
	assert.Equal(t, "Overview", panel.Snapshot("en-US").Name)
	assert.Equal(t, "Vue d'ensemble", panel.Snapshot("fr").Name)
}
