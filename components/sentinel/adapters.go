package sentinel

import (
	"bytes"
	"encoding/json"
	"sort"
)

// DashboardSummary holds the aggregate counters of GET /api/nexus/dashboard.
type DashboardSummary struct {
	TotalTenants  Number `json:"total_tenants"`
	ActiveTenants Number `json:"active_tenants"`
	TotalCalls    Number `json:"total_calls"`
	TotalCost     Number `json:"total_cost"`
}

// Alert is one backend alert.
type Alert struct {
	ID        Text `json:"id"`
	Level     Text `json:"level"`
	Message   Text `json:"message"`
	Tenant    Text `json:"tenant"`
	CreatedAt Text `json:"created_at"`
}

// AlertSummary accepts {active, recent} objects as well as a bare alert list.
type AlertSummary struct {
	Active Number  `json:"active"`
	Recent []Alert `json:"recent"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AlertSummary) UnmarshalJSON(data []byte) error {
	*a = AlertSummary{Recent: []Alert{}}
	if isArray(data) {
		var list []Alert
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		a.Recent = list
		a.Active = Number(len(list))
		return nil
	}
	if _, ok := asObject(data); !ok {
		return nil
	}
	type plain AlertSummary
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*a = AlertSummary(out)
	if a.Recent == nil {
		a.Recent = []Alert{}
	}
	return nil
}

// CostItem is one slice of the cost breakdown.
type CostItem struct {
	Name  Text   `json:"name"`
	Cost  Number `json:"cost"`
	Calls Number `json:"calls"`
}

// CostBreakdown accepts a list of items or a {name: amount} object.
type CostBreakdown []CostItem

// UnmarshalJSON implements json.Unmarshaler.
func (c *CostBreakdown) UnmarshalJSON(data []byte) error {
	*c = CostBreakdown{}
	if isArray(data) {
		var items []struct {
			Name     Text   `json:"name"`
			Provider Text   `json:"provider"`
			Label    Text   `json:"label"`
			Cost     Number `json:"cost"`
			Amount   Number `json:"amount"`
			Calls    Number `json:"calls"`
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, item := range items {
			name := firstText(item.Name, item.Provider, item.Label)
			cost := item.Cost
			if cost == 0 {
				cost = item.Amount
			}
			*c = append(*c, CostItem{Name: name, Cost: cost, Calls: item.Calls})
		}
		return nil
	}
	obj, ok := asObject(data)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var amount Number
		if err := json.Unmarshal(obj[name], &amount); err != nil {
			continue
		}
		*c = append(*c, CostItem{Name: Text(name), Cost: amount})
	}
	return nil
}

// DashboardOverview is the normalized dashboard payload.
type DashboardOverview struct {
	Summary DashboardSummary `json:"summary"`
	Alerts  AlertSummary     `json:"alerts"`
	Costs   CostBreakdown    `json:"costs"`
}

// DecodeDashboard normalizes GET /api/nexus/dashboard.
func DecodeDashboard(raw json.RawMessage) (DashboardOverview, error) {
	out, err := DecodeObject[DashboardOverview](raw, "dashboard")
	if out.Alerts.Recent == nil {
		out.Alerts.Recent = []Alert{}
	}
	if out.Costs == nil {
		out.Costs = CostBreakdown{}
	}
	return out, err
}

// Tenant is one customer account.
type Tenant struct {
	ID        Text   `json:"id"`
	Name      Text   `json:"name"`
	Nom       Text   `json:"nom"`
	Plan      Text   `json:"plan"`
	Status    Text   `json:"status"`
	Calls     Number `json:"calls"`
	Cost      Number `json:"cost"`
	CreatedAt Text   `json:"created_at"`
}

// DisplayName returns the best available tenant label.
func (t Tenant) DisplayName() string {
	return firstText(t.Name, t.Nom, t.ID).String()
}

// DecodeTenants normalizes GET /api/nexus/tenants.
func DecodeTenants(raw json.RawMessage) ([]Tenant, error) {
	return DecodeList[Tenant](raw, "tenants")
}

// HealthFactor is one component of the health score.
type HealthFactor struct {
	Name  Text   `json:"name"`
	Score Number `json:"score"`
}

// HealthScore is the sentinel intelligence health assessment.
type HealthScore struct {
	Score   Number         `json:"score"`
	Status  Text           `json:"status"`
	Trend   Text           `json:"trend"`
	Factors []HealthFactor `json:"factors"`
}

// DecodeHealthScore normalizes GET .../health-score.
func DecodeHealthScore(raw json.RawMessage) (HealthScore, error) {
	out, err := DecodeObject[HealthScore](raw, "health_score", "health")
	if out.Factors == nil {
		out.Factors = []HealthFactor{}
	}
	return out, err
}

// Anomaly is one detected anomaly.
type Anomaly struct {
	ID          Text   `json:"id"`
	Type        Text   `json:"type"`
	Severity    Text   `json:"severity"`
	Description Text   `json:"description"`
	Tenant      Text   `json:"tenant"`
	Score       Number `json:"score"`
	DetectedAt  Text   `json:"detected_at"`
}

// DecodeAnomalies normalizes GET .../anomalies.
func DecodeAnomalies(raw json.RawMessage) ([]Anomaly, error) {
	return DecodeList[Anomaly](raw, "anomalies")
}

// Prediction is one generated forecast.
type Prediction struct {
	ID          Text   `json:"id"`
	Metric      Text   `json:"metric"`
	Description Text   `json:"description"`
	Value       Number `json:"value"`
	Confidence  Number `json:"confidence"`
	Horizon     Text   `json:"horizon"`
}

// DecodePredictions normalizes GET .../predictions.
func DecodePredictions(raw json.RawMessage) ([]Prediction, error) {
	return DecodeList[Prediction](raw, "predictions")
}

// Recommendation is one suggested operator action.
type Recommendation struct {
	ID          Text   `json:"id"`
	Title       Text   `json:"title"`
	Description Text   `json:"description"`
	Priority    Text   `json:"priority"`
	Category    Text   `json:"category"`
	Impact      Number `json:"impact"`
}

// DecodeRecommendations normalizes GET .../recommendations.
func DecodeRecommendations(raw json.RawMessage) ([]Recommendation, error) {
	return DecodeList[Recommendation](raw, "recommendations")
}

// ServiceStatus is the state of one monitored service.
type ServiceStatus struct {
	Name    Text   `json:"name"`
	Status  Text   `json:"status"`
	Latency Number `json:"latency"`
}

// SentinelStatus is GET /api/nexus/sentinel/status.
type SentinelStatus struct {
	Status    Text            `json:"status"`
	Uptime    Number          `json:"uptime"`
	CPU       Number          `json:"cpu"`
	Memory    Number          `json:"memory"`
	LastCheck Text            `json:"last_check"`
	Services  []ServiceStatus `json:"services"`
}

// DecodeStatus normalizes GET /api/nexus/sentinel/status.
func DecodeStatus(raw json.RawMessage) (SentinelStatus, error) {
	out, err := DecodeObject[SentinelStatus](raw, "sentinel")
	if out.Services == nil {
		out.Services = []ServiceStatus{}
	}
	return out, err
}

// SecurityLog is one security journal entry.
type SecurityLog struct {
	ID        Text `json:"id"`
	Level     Text `json:"level"`
	Event     Text `json:"event"`
	Message   Text `json:"message"`
	IP        Text `json:"ip"`
	CreatedAt Text `json:"created_at"`
}

// DecodeSecurityLogs normalizes GET /api/nexus/sentinel/security/logs.
func DecodeSecurityLogs(raw json.RawMessage) ([]SecurityLog, error) {
	return DecodeList[SecurityLog](raw, "logs")
}

// SecurityStats aggregates the security journal.
type SecurityStats struct {
	TotalEvents  Number `json:"total_events"`
	BlockedIPs   Number `json:"blocked_ips"`
	FailedLogins Number `json:"failed_logins"`
	Critical     Number `json:"critical"`
}

// DecodeSecurityStats normalizes GET /api/nexus/sentinel/security/stats.
func DecodeSecurityStats(raw json.RawMessage) (SecurityStats, error) {
	return DecodeObject[SecurityStats](raw, "stats")
}

// Backup is one stored backup archive.
type Backup struct {
	Name      Text `json:"name"`
	Size      Text `json:"size"`
	Status    Text `json:"status"`
	CreatedAt Text `json:"created_at"`
}

// DecodeBackups normalizes GET /api/nexus/sentinel/backups.
func DecodeBackups(raw json.RawMessage) ([]Backup, error) {
	return DecodeList[Backup](raw, "backups")
}

// AutopilotAction is one action taken automatically.
type AutopilotAction struct {
	Type        Text `json:"type"`
	Status      Text `json:"status"`
	Description Text `json:"description"`
	At          Text `json:"at"`
}

// AutopilotStatus is GET /api/sentinel/autopilot/status.
type AutopilotStatus struct {
	Enabled      Flag              `json:"enabled"`
	Mode         Text              `json:"mode"`
	LastRun      Text              `json:"last_run"`
	ActionsToday Number            `json:"actions_today"`
	Actions      []AutopilotAction `json:"actions"`
}

// DecodeAutopilot normalizes GET /api/sentinel/autopilot/status.
func DecodeAutopilot(raw json.RawMessage) (AutopilotStatus, error) {
	out, err := DecodeObject[AutopilotStatus](raw, "autopilot")
	if out.Actions == nil {
		out.Actions = []AutopilotAction{}
	}
	return out, err
}

// CacheStats is GET /api/optimization/cache/stats.
type CacheStats struct {
	HitRate   Number `json:"hit_rate"`
	Hits      Number `json:"hits"`
	Misses    Number `json:"misses"`
	Entries   Number `json:"entries"`
	MemoryMB  Number `json:"memory_mb"`
	SavedCost Number `json:"saved_cost"`
}

// DecodeCacheStats normalizes GET /api/optimization/cache/stats.
func DecodeCacheStats(raw json.RawMessage) (CacheStats, error) {
	out, err := DecodeObject[CacheStats](raw, "stats", "cache")
	if err == nil && out.HitRate == 0 && out.Hits+out.Misses > 0 {
		out.HitRate = Number(float64(out.Hits) / float64(out.Hits+out.Misses) * 100)
	}
	return out, err
}

// PricingPlan is one entry of GET /api/optimization/pricing.
type PricingPlan struct {
	Name          Text   `json:"name"`
	Price         Number `json:"price"`
	Currency      Text   `json:"currency"`
	IncludedCalls Number `json:"included_calls"`
	Features      []Text `json:"features"`
}

// DecodePricing normalizes GET /api/optimization/pricing.
func DecodePricing(raw json.RawMessage) ([]PricingPlan, error) {
	return DecodeList[PricingPlan](raw, "plans", "pricing")
}

// ExplainResult is the backend explainer response.
type ExplainResult struct {
	Answer      Text `json:"answer"`
	Explanation Text `json:"explanation"`
	Response    Text `json:"response"`
}

// Text returns the first non-empty answer field.
func (e ExplainResult) Text() string {
	return firstText(e.Answer, e.Explanation, e.Response).String()
}

// DecodeExplain normalizes POST /api/admin/sentinel-intelligence/explain.
func DecodeExplain(raw json.RawMessage) (ExplainResult, error) {
	doc, err := Unwrap(raw)
	if err != nil {
		return ExplainResult{}, err
	}
	if trimmed := bytes.TrimSpace(doc); len(trimmed) > 0 && trimmed[0] == '"' {
		var answer string
		if err := json.Unmarshal(trimmed, &answer); err != nil {
			return ExplainResult{}, err
		}
		return ExplainResult{Answer: Text(answer)}, nil
	}
	return DecodeObject[ExplainResult](doc)
}

// ActionResult is the normalized response of an operator action.
type ActionResult struct {
	Success Flag   `json:"success"`
	Message Text   `json:"message"`
	Name    Text   `json:"name"`
	Output  Text   `json:"output"`
	Count   Number `json:"count"`
}

// DecodeActionResult normalizes action responses.
func DecodeActionResult(raw json.RawMessage) (ActionResult, error) {
	doc, err := Unwrap(raw)
	if err != nil {
		return ActionResult{}, err
	}
	items, err := DecodeList[json.RawMessage](doc, "anomalies", "predictions", "items")
	if err != nil {
		return ActionResult{}, err
	}
	if isArray(doc) {
		return ActionResult{Success: true, Count: Number(len(items))}, nil
	}
	out, err := DecodeObject[ActionResult](doc, "result", "backup")
	if err != nil {
		return out, err
	}
	if out.Count == 0 {
		out.Count = Number(len(items))
	}
	return out, nil
}

func firstText(values ...Text) Text {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
