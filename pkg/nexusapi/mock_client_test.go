package nexusapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

func TestDefaultMockDataDecodes(t *testing.T) {
	client := NewMockClient(DefaultMockData())
	ctx := context.Background()

	raw, err := client.Get(ctx, sentinel.PathDashboard, DemoToken)
	require.NoError(t, err)
	overview, err := sentinel.DecodeDashboard(raw)
	require.NoError(t, err)
	assert.Equal(t, 12, overview.Summary.TotalTenants.Int())
	assert.Equal(t, 2, overview.Alerts.Active.Int())
	assert.Len(t, overview.Costs, 2)

	raw, err = client.Get(ctx, sentinel.PathTenants, DemoToken)
	require.NoError(t, err)
	tenants, err := sentinel.DecodeTenants(raw)
	require.NoError(t, err)
	assert.Len(t, tenants, 2)

	raw, err = client.Get(ctx, sentinel.PathCacheStats, DemoToken)
	require.NoError(t, err)
	stats, err := sentinel.DecodeCacheStats(raw)
	require.NoError(t, err)
	assert.InDelta(t, 75, stats.HitRate.Float(), 0.01)

	raw, err = client.Get(ctx, sentinel.PathRecommendations, DemoToken)
	require.NoError(t, err)
	recs, err := sentinel.DecodeRecommendations(raw)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	raw, err = client.Post(ctx, sentinel.PathBackups, DemoToken, nil)
	require.NoError(t, err)
	result, err := sentinel.DecodeActionResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "backup-demo.tar.gz", result.Name.String())
}

func TestMockClientLoginAndAuth(t *testing.T) {
	client := NewMockClient(DefaultMockData())
	ctx := context.Background()

	raw, err := client.Post(ctx, sentinel.PathLogin, "", sentinel.LoginRequest{Email: "ops@nexus.test", Password: "pw"})
	require.NoError(t, err)
	var body struct {
		Data struct {
			Token string          `json:"token"`
			User  json.RawMessage `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, DemoToken, body.Data.Token)
	assert.Contains(t, string(body.Data.User), "super_admin")

	_, err = client.Get(ctx, sentinel.PathStatus, "wrong")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.Unauthorized())
	assert.Equal(t, 2, client.Calls(sentinel.PathStatus)+client.Calls(sentinel.PathLogin))
}

func TestMockClientOverrides(t *testing.T) {
	client := NewMockClient(MockData{})
	ctx := context.Background()

	_, err := client.Get(ctx, sentinel.PathPricing, "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.Status)

	client.SetResponse(sentinel.PathPricing, json.RawMessage(`{"plans":[]}`))
	raw, err := client.Get(ctx, sentinel.PathPricing, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"plans":[]}`, string(raw))

	client.SetFailure(sentinel.PathPricing, errors.New("offline"))
	_, err = client.Get(ctx, sentinel.PathPricing, "")
	assert.EqualError(t, err, "offline")

	raw, err = client.Post(ctx, sentinel.RestorePath("b.tar.gz"), "", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(raw))

	client.SetAction(sentinel.PathConsole, json.RawMessage(`{"output":"pong"}`))
	raw, err = client.Post(ctx, sentinel.PathConsole, "", map[string]string{"command": "ping"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"pong"}`, string(raw))

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = client.Get(ctx, sentinel.PathPricing, "")
	assert.ErrorIs(t, err, context.Canceled)
}
