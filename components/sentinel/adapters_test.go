package sentinel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDashboardShapes(t *testing.T) {
	overview, err := DecodeDashboard(json.RawMessage(dashboardFixture))
	require.NoError(t, err)
	assert.Equal(t, 12, overview.Summary.TotalTenants.Int())
	assert.Equal(t, 340, overview.Summary.TotalCalls.Int())
	assert.Equal(t, 58.03, overview.Summary.TotalCost.Float())
	assert.Equal(t, 2, overview.Alerts.Active.Int())
	assert.NotNil(t, overview.Alerts.Recent)
	assert.NotNil(t, overview.Costs)

	overview, err = DecodeDashboard(json.RawMessage(`{"data":{"dashboard":{
		"summary":{"total_tenants":"4"},
		"alerts":[{"id":1,"level":"critical","message":"quota"}],
		"costs":{"openai":10.5,"anthropic":"2.25"}
	}}}`))
	require.NoError(t, err)
	assert.Equal(t, 4, overview.Summary.TotalTenants.Int())
	assert.Equal(t, 1, overview.Alerts.Active.Int())
	require.Len(t, overview.Costs, 2)
	assert.Equal(t, "anthropic", overview.Costs[0].Name.String())
	assert.Equal(t, 2.25, overview.Costs[0].Cost.Float())

	overview, err = DecodeDashboard(json.RawMessage(`{"costs":[{"provider":"mistral","amount":3}]}`))
	require.NoError(t, err)
	require.Len(t, overview.Costs, 1)
	assert.Equal(t, "mistral", overview.Costs[0].Name.String())
	assert.Equal(t, 3.0, overview.Costs[0].Cost.Float())
}

func TestDashboardViewTargets(t *testing.T) {
	overview, err := DecodeDashboard(json.RawMessage(`{"summary":{"totalTenants":12,"totalCalls":340,"totalCost":58.03},"alerts":{"active":2},"costs":{"openai":40,"anthropic":18.03}}`))
	require.NoError(t, err)
	view := dashboardView(map[string]any{"dashboard": overview})
	assert.Equal(t, 12.0, view.Counters["tenants"])
	assert.Equal(t, 340.0, view.Counters["calls"])
	assert.Equal(t, 58.03, view.Counters["cost"])
	require.Len(t, view.Badges, 1)
	assert.Equal(t, "2", view.Badges[0].Value)
	assert.Equal(t, "danger", view.Badges[0].Tone)
	require.Len(t, view.Charts, 1)
	assert.Equal(t, "pie", view.Charts[0].Kind)
	assert.Len(t, view.Charts[0].Points, 2)

	empty := dashboardView(map[string]any{})
	assert.Empty(t, empty.Counters)
}

func TestDecodeCacheStatsDerivesHitRate(t *testing.T) {
	stats, err := DecodeCacheStats(json.RawMessage(`{"data":{"stats":{"hits":75,"misses":25,"entries":10}}}`))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, stats.HitRate.Float(), 1e-9)

	stats, err = DecodeCacheStats(json.RawMessage(`{"hitRate":"42.5"}`))
	require.NoError(t, err)
	assert.Equal(t, 42.5, stats.HitRate.Float())
}

func TestDecodeAutopilotFlag(t *testing.T) {
	status, err := DecodeAutopilot(json.RawMessage(`{"data":{"enabled":"active","mode":"auto","actionsToday":3}}`))
	require.NoError(t, err)
	assert.True(t, status.Enabled.Bool())
	assert.Equal(t, 3, status.ActionsToday.Int())
	assert.NotNil(t, status.Actions)
}

func TestDecodeExplainShapes(t *testing.T) {
	result, err := DecodeExplain(json.RawMessage(`{"data":"Les coûts augmentent."}`))
	require.NoError(t, err)
	assert.Equal(t, "Les coûts augmentent.", result.Text())

	result, err = DecodeExplain(json.RawMessage(`{"explanation":"Latence élevée"}`))
	require.NoError(t, err)
	assert.Equal(t, "Latence élevée", result.Text())
}

func TestDecodeActionResultShapes(t *testing.T) {
	result, err := DecodeActionResult(json.RawMessage(`{"data":{"backup":{"name":"backup-2026-03-01.tar.gz"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "backup-2026-03-01.tar.gz", result.Name.String())

	result, err = DecodeActionResult(json.RawMessage(`{"data":[{"id":1},{"id":2},{"id":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count.Int())

	result, err = DecodeActionResult(json.RawMessage(`{"success":true,"anomalies":[{"id":1}]}`))
	require.NoError(t, err)
	assert.True(t, result.Success.Bool())
	assert.Equal(t, 1, result.Count.Int())
}

func TestDecodeListsForIntelligence(t *testing.T) {
	anomalies, err := DecodeAnomalies(json.RawMessage(`{"data":{"anomalies":[{"id":"a1","severity":"high"}]}}`))
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	plans, err := DecodePricing(json.RawMessage(`{"plans":[{"name":"Starter","price":49,"currency":"EUR"}]}`))
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 49.0, plans[0].Price.Float())
}
