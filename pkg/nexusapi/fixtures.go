package nexusapi

import (
	"encoding/json"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

// DemoToken is the bearer token issued by the mock client.
const DemoToken = "demo-token"

// DefaultMockData returns fixtures for every panel endpoint, shaped like the live
// backend's envelopes.
func DefaultMockData() MockData {
	return MockData{
		Token: DemoToken,
		User:  json.RawMessage(`{"id":1,"email":"ops@nexus.test","name":"Ops","role":"super_admin"}`),
		Responses: map[string]json.RawMessage{
			sentinel.PathDashboard: json.RawMessage(`{"success":true,"data":{
				"summary":{"totalTenants":12,"activeTenants":9,"totalCalls":340,"totalCost":58.03},
				"alerts":{"active":2,"recent":[
					{"id":"al-1","level":"warning","message":"Coût en hausse","tenant":"acme","createdAt":"2026-10-18T08:00:00Z"},
					{"id":"al-2","level":"critical","message":"Quota dépassé","tenant":"globex","createdAt":"2026-10-18T09:30:00Z"}]},
				"costs":{"openai":40,"anthropic":18.03}}}`),
			sentinel.PathTenants: json.RawMessage(`{"success":true,"data":{"tenants":[
				{"id":"t-1","name":"Acme","plan":"pro","status":"active","calls":210,"cost":31.2},
				{"id":"t-2","nom":"Globex","plan":"starter","status":"suspended","calls":130,"cost":26.83}]}}`),
			sentinel.PathHealthScore: json.RawMessage(`{"data":{"score":87,"status":"healthy","trend":"up",
				"factors":[{"name":"latency","score":90},{"name":"errors","score":82}]}}`),
			sentinel.PathAnomalies: json.RawMessage(`{"data":{"anomalies":[
				{"id":"an-1","type":"cost_spike","severity":"high","description":"Pic de coût OpenAI","tenant":"acme","score":0.92}]}}`),
			sentinel.PathPredictions: json.RawMessage(`{"data":[
				{"id":"p-1","metric":"cost","description":"Coût mensuel projeté","value":1740,"confidence":0.81,"horizon":"30d"}]}`),
			sentinel.PathRecommendations: json.RawMessage(`{"recommendations":[
				{"id":"r-1","title":"Activer le cache","description":"Réduire les appels répétés","priority":"high","category":"cost","impact":12.5}]}`),
			sentinel.PathStatus: json.RawMessage(`{"data":{"status":"operational","uptime":99.98,"cpu":37.5,"memory":61.2,"lastCheck":"2026-10-18T10:00:00Z",
				"services":[{"name":"api","status":"up","latency":84},{"name":"worker","status":"up","latency":12}]}}`),
			sentinel.PathSecurityLogs: json.RawMessage(`{"data":{"logs":[
				{"id":"l-1","level":"warning","event":"login_failed","message":"Mot de passe invalide","ip":"203.0.113.7","createdAt":"2026-10-18T07:12:00Z"}]}}`),
			sentinel.PathSecurityStats: json.RawMessage(`{"data":{"totalEvents":48,"blockedIps":3,"failedLogins":7,"critical":1}}`),
			sentinel.PathBackups: json.RawMessage(`{"data":{"backups":[
				{"name":"backup-2026-10-17.tar.gz","size":"1.2 GB","status":"completed","createdAt":"2026-10-17T02:00:00Z"}]}}`),
			sentinel.PathAutopilot: json.RawMessage(`{"data":{"enabled":true,"mode":"auto","lastRun":"2026-10-18T09:55:00Z","actionsToday":4,
				"actions":[{"type":"scale_down","status":"done","description":"Réduction du pool GPU","at":"2026-10-18T09:55:00Z"}]}}`),
			sentinel.PathCacheStats: json.RawMessage(`{"data":{"stats":{"hits":750,"misses":250,"entries":1200,"memoryMb":64,"savedCost":12.4}}}`),
			sentinel.PathPricing: json.RawMessage(`{"data":{"plans":[
				{"name":"Starter","price":49,"currency":"EUR"},{"name":"Pro","price":199,"currency":"EUR"}]}}`),
		},
		Actions: map[string]json.RawMessage{
			sentinel.PathBackups:  json.RawMessage(`{"success":true,"data":{"backup":{"name":"backup-demo.tar.gz"}}}`),
			sentinel.PathDetect:   json.RawMessage(`{"success":true,"data":[{"id":"an-2"},{"id":"an-3"}]}`),
			sentinel.PathGenerate: json.RawMessage(`{"success":true,"predictions":[{"id":"p-2"}]}`),
			sentinel.PathConsole:  json.RawMessage(`{"success":true,"output":"ok"}`),
			sentinel.PathExplain:  json.RawMessage(`{"data":{"explanation":"Les coûts suivent le volume d'appels OpenAI."}}`),
		},
	}
}
