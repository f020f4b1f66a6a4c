package sentinel

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Panel codes registered by default.
const (
	PanelDashboard    = "nexus.dashboard"
	PanelTenants      = "nexus.tenants"
	PanelIntelligence = "sentinel.intelligence"
	PanelStatus       = "sentinel.status"
	PanelSecurity     = "sentinel.security"
	PanelBackups      = "sentinel.backups"
	PanelAutopilot    = "sentinel.autopilot"
	PanelCache        = "optimization.cache"
	PanelPricing      = "optimization.pricing"
)

// Backend paths.
const (
	PathDashboard       = "/api/nexus/dashboard"
	PathTenants         = "/api/nexus/tenants"
	PathIntelligence    = "/api/admin/sentinel-intelligence"
	PathHealthScore     = PathIntelligence + "/health-score"
	PathAnomalies       = PathIntelligence + "/anomalies"
	PathDetect          = PathAnomalies + "/detect"
	PathPredictions     = PathIntelligence + "/predictions"
	PathGenerate        = PathPredictions + "/generate"
	PathRecommendations = PathIntelligence + "/recommendations"
	PathExplain         = PathIntelligence + "/explain"
	PathStatus          = "/api/nexus/sentinel/status"
	PathSecurityLogs    = "/api/nexus/sentinel/security/logs"
	PathSecurityStats   = "/api/nexus/sentinel/security/stats"
	PathBackups         = "/api/nexus/sentinel/backups"
	PathConsole         = "/api/nexus/sentinel/console/execute"
	PathAutopilot       = "/api/sentinel/autopilot/status"
	PathCacheStats      = "/api/optimization/cache/stats"
	PathPricing         = "/api/optimization/pricing"
	PathLogin           = "/api/admin/auth/login"
)

// RestorePath returns the restore endpoint for a backup.
func RestorePath(name string) string {
	return PathBackups + "/" + name + "/restore"
}

// EndpointSpec is one GET request issued per refresh cycle.
type EndpointSpec struct {
	Key    string                             `json:"key"`
	Path   string                             `json:"path"`
	Decode func(json.RawMessage) (any, error) `json:"-"`
}

// CounterSpec declares an animated counter shown by a panel.
type CounterSpec struct {
	Key      string        `json:"key"`
	Label    string        `json:"label"`
	Decimals int           `json:"decimals"`
	Suffix   string        `json:"suffix,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Badge is a small labelled value, e.g. the active alert count.
type Badge struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	Tone  string `json:"tone,omitempty"`
}

// ChartPoint is one labelled value.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSpec describes a chart derived from panel data.
type ChartSpec struct {
	Key    string       `json:"key"`
	Title  string       `json:"title"`
	Kind   string       `json:"kind"`
	Points []ChartPoint `json:"points"`
}

// PanelView is what a panel displays for its latest committed data.
type PanelView struct {
	Counters map[string]float64
	Badges   []Badge
	Charts   []ChartSpec
}

// ViewFunc derives the view from committed endpoint data keyed by EndpointSpec.Key.
// Endpoints without data are absent from the map.
type ViewFunc func(data map[string]any) PanelView

// PanelDefinition describes a dashboard panel.
type PanelDefinition struct {
	Code                 string            `json:"code"`
	Name                 string            `json:"name"`
	NameLocalized        map[string]string `json:"name_localized,omitempty"`
	Description          string            `json:"description,omitempty"`
	DescriptionLocalized map[string]string `json:"description_localized,omitempty"`
	Category             string            `json:"category"`
	Interval             time.Duration     `json:"interval"`
	Disabled             bool              `json:"disabled,omitempty"`
	Endpoints            []EndpointSpec    `json:"endpoints"`
	Counters             []CounterSpec     `json:"counters,omitempty"`
	Schema               map[string]any    `json:"schema,omitempty"`
	View                 ViewFunc          `json:"-"`
}

func decodeAs[T any](fn func(json.RawMessage) (T, error)) func(json.RawMessage) (any, error) {
	return func(raw json.RawMessage) (any, error) {
		value, err := fn(raw)
		if err != nil {
			return nil, err
		}
		return value, nil
	}
}

func panelConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"interval_seconds": map[string]any{"type": "integer", "minimum": 3, "maximum": 30},
			"paused":           map[string]any{"type": "boolean"},
		},
		"additionalProperties": false,
	}
}

// DefaultPanelDefinitions returns the built-in NEXUS panels.
func DefaultPanelDefinitions() []PanelDefinition {
	return []PanelDefinition{
		{
			Code:          PanelDashboard,
			Name:          "Vue d'ensemble",
			NameLocalized: map[string]string{"en": "Overview"},
			Description:   "Tenants, appels IA, coûts et alertes",
			Category:      "nexus",
			Interval:      30 * time.Second,
			Endpoints: []EndpointSpec{
				{Key: "dashboard", Path: PathDashboard, Decode: decodeAs(DecodeDashboard)},
			},
			Counters: []CounterSpec{
				{Key: "tenants", Label: "Tenants"},
				{Key: "calls", Label: "Appels IA"},
				{Key: "cost", Label: "Cout total", Decimals: 2, Suffix: "€"},
			},
			View: dashboardView,
		},
		{
			Code:          PanelTenants,
			Name:          "Tenants",
			Description:   "Comptes clients actifs",
			Category:      "nexus",
			Interval:      30 * time.Second,
			Endpoints:     []EndpointSpec{{Key: "tenants", Path: PathTenants, Decode: decodeAs(DecodeTenants)}},
			Counters:      []CounterSpec{{Key: "count", Label: "Tenants"}},
			View:          tenantsView,
			NameLocalized: map[string]string{"en": "Tenants"},
		},
		{
			Code:          PanelIntelligence,
			Name:          "Intelligence Sentinel",
			NameLocalized: map[string]string{"en": "Sentinel intelligence"},
			Description:   "Score de santé, anomalies, prédictions et recommandations",
			Category:      "sentinel",
			Interval:      20 * time.Second,
			Endpoints: []EndpointSpec{
				{Key: "health", Path: PathHealthScore, Decode: decodeAs(DecodeHealthScore)},
				{Key: "anomalies", Path: PathAnomalies, Decode: decodeAs(DecodeAnomalies)},
				{Key: "predictions", Path: PathPredictions, Decode: decodeAs(DecodePredictions)},
				{Key: "recommendations", Path: PathRecommendations, Decode: decodeAs(DecodeRecommendations)},
			},
			Counters: []CounterSpec{{Key: "health", Label: "Score de santé"}},
			View:     intelligenceView,
		},
		{
			Code:          PanelStatus,
			Name:          "Statut Sentinel",
			NameLocalized: map[string]string{"en": "Sentinel status"},
			Category:      "sentinel",
			Interval:      3 * time.Second,
			Endpoints:     []EndpointSpec{{Key: "status", Path: PathStatus, Decode: decodeAs(DecodeStatus)}},
			Counters: []CounterSpec{
				{Key: "uptime", Label: "Disponibilité", Decimals: 2, Suffix: "%"},
				{Key: "cpu", Label: "CPU", Decimals: 1, Suffix: "%"},
				{Key: "memory", Label: "Mémoire", Decimals: 1, Suffix: "%"},
			},
			View: statusView,
		},
		{
			Code:          PanelSecurity,
			Name:          "Sécurité",
			NameLocalized: map[string]string{"en": "Security"},
			Category:      "sentinel",
			Interval:      15 * time.Second,
			Endpoints: []EndpointSpec{
				{Key: "logs", Path: PathSecurityLogs, Decode: decodeAs(DecodeSecurityLogs)},
				{Key: "stats", Path: PathSecurityStats, Decode: decodeAs(DecodeSecurityStats)},
			},
			Counters: []CounterSpec{
				{Key: "events", Label: "Événements"},
				{Key: "blocked", Label: "IP bloquées"},
			},
			View: securityView,
		},
		{
			Code:          PanelBackups,
			Name:          "Sauvegardes",
			NameLocalized: map[string]string{"en": "Backups"},
			Category:      "sentinel",
			Interval:      30 * time.Second,
			Endpoints:     []EndpointSpec{{Key: "backups", Path: PathBackups, Decode: decodeAs(DecodeBackups)}},
			Counters:      []CounterSpec{{Key: "count", Label: "Sauvegardes"}},
			View:          backupsView,
		},
		{
			Code:          PanelAutopilot,
			Name:          "Autopilot",
			Category:      "sentinel",
			Interval:      10 * time.Second,
			Endpoints:     []EndpointSpec{{Key: "autopilot", Path: PathAutopilot, Decode: decodeAs(DecodeAutopilot)}},
			Counters:      []CounterSpec{{Key: "actions", Label: "Actions aujourd'hui"}},
			View:          autopilotView,
			NameLocalized: map[string]string{"en": "Autopilot"},
		},
		{
			Code:          PanelCache,
			Name:          "Cache",
			NameLocalized: map[string]string{"en": "Cache"},
			Category:      "optimization",
			Interval:      15 * time.Second,
			Endpoints:     []EndpointSpec{{Key: "cache", Path: PathCacheStats, Decode: decodeAs(DecodeCacheStats)}},
			Counters: []CounterSpec{
				{Key: "hit_rate", Label: "Taux de hit", Decimals: 1, Suffix: "%"},
				{Key: "entries", Label: "Entrées"},
				{Key: "saved", Label: "Économies", Decimals: 2, Suffix: "€"},
			},
			View: cacheView,
		},
		{
			Code:          PanelPricing,
			Name:          "Tarification",
			NameLocalized: map[string]string{"en": "Pricing"},
			Category:      "optimization",
			Interval:      30 * time.Second,
			Endpoints:     []EndpointSpec{{Key: "pricing", Path: PathPricing, Decode: decodeAs(DecodePricing)}},
			Counters:      []CounterSpec{{Key: "plans", Label: "Offres"}},
			View:          pricingView,
		},
	}
}

func dashboardView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	overview, ok := data["dashboard"].(DashboardOverview)
	if !ok {
		return view
	}
	view.Counters["tenants"] = overview.Summary.TotalTenants.Float()
	view.Counters["calls"] = overview.Summary.TotalCalls.Float()
	view.Counters["cost"] = overview.Summary.TotalCost.Float()
	active := overview.Alerts.Active.Int()
	view.Badges = append(view.Badges, Badge{
		Key:   "alerts",
		Label: "Alertes",
		Value: strconv.Itoa(active),
		Tone:  toneFor(active > 0, "danger", "success"),
	})
	if len(overview.Costs) > 0 {
		points := make([]ChartPoint, 0, len(overview.Costs))
		for _, item := range overview.Costs {
			points = append(points, ChartPoint{Label: item.Name.String(), Value: item.Cost.Float()})
		}
		view.Charts = append(view.Charts, ChartSpec{
			Key:    "costs",
			Title:  "Répartition des coûts",
			Kind:   "pie",
			Points: points,
		})
	}
	return view
}

func tenantsView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	tenants, ok := data["tenants"].([]Tenant)
	if !ok {
		return view
	}
	view.Counters["count"] = float64(len(tenants))
	active := 0
	plans := map[string]float64{}
	var order []string
	for _, tenant := range tenants {
		if strings.EqualFold(tenant.Status.String(), "active") {
			active++
		}
		plan := tenant.Plan.String()
		if plan == "" {
			plan = "n/a"
		}
		if _, seen := plans[plan]; !seen {
			order = append(order, plan)
		}
		plans[plan]++
	}
	view.Badges = append(view.Badges, Badge{Key: "active", Label: "Actifs", Value: strconv.Itoa(active)})
	if len(order) > 0 {
		points := make([]ChartPoint, 0, len(order))
		for _, plan := range order {
			points = append(points, ChartPoint{Label: plan, Value: plans[plan]})
		}
		view.Charts = append(view.Charts, ChartSpec{Key: "plans", Title: "Tenants par offre", Kind: "pie", Points: points})
	}
	return view
}

func intelligenceView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	if health, ok := data["health"].(HealthScore); ok {
		view.Counters["health"] = health.Score.Float()
		if status := health.Status.String(); status != "" {
			view.Badges = append(view.Badges, Badge{Key: "status", Label: "Santé", Value: status})
		}
	}
	if anomalies, ok := data["anomalies"].([]Anomaly); ok {
		critical := 0
		for _, anomaly := range anomalies {
			if isSevere(anomaly.Severity.String()) {
				critical++
			}
		}
		view.Badges = append(view.Badges, Badge{
			Key:   "anomalies",
			Label: "Anomalies",
			Value: strconv.Itoa(len(anomalies)),
			Tone:  toneFor(critical > 0, "danger", ""),
		})
	}
	if predictions, ok := data["predictions"].([]Prediction); ok {
		view.Badges = append(view.Badges, Badge{Key: "predictions", Label: "Prédictions", Value: strconv.Itoa(len(predictions))})
	}
	if recommendations, ok := data["recommendations"].([]Recommendation); ok {
		view.Badges = append(view.Badges, Badge{Key: "recommendations", Label: "Recommandations", Value: strconv.Itoa(len(recommendations))})
	}
	return view
}

func statusView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	status, ok := data["status"].(SentinelStatus)
	if !ok {
		return view
	}
	view.Counters["uptime"] = status.Uptime.Float()
	view.Counters["cpu"] = status.CPU.Float()
	view.Counters["memory"] = status.Memory.Float()
	label := status.Status.String()
	if label == "" {
		label = "unknown"
	}
	healthy := strings.EqualFold(label, "ok") || strings.EqualFold(label, "operational") || strings.EqualFold(label, "healthy")
	view.Badges = append(view.Badges, Badge{Key: "status", Label: "Statut", Value: label, Tone: toneFor(healthy, "success", "warning")})
	down := 0
	for _, svc := range status.Services {
		s := strings.ToLower(svc.Status.String())
		if s == "down" || s == "error" || s == "offline" {
			down++
		}
	}
	if down > 0 {
		view.Badges = append(view.Badges, Badge{Key: "down", Label: "Services en panne", Value: strconv.Itoa(down), Tone: "danger"})
	}
	return view
}

func securityView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	if stats, ok := data["stats"].(SecurityStats); ok {
		view.Counters["events"] = stats.TotalEvents.Float()
		view.Counters["blocked"] = stats.BlockedIPs.Float()
		critical := stats.Critical.Int()
		view.Badges = append(view.Badges, Badge{
			Key:   "critical",
			Label: "Critiques",
			Value: strconv.Itoa(critical),
			Tone:  toneFor(critical > 0, "danger", "success"),
		})
	}
	if logs, ok := data["logs"].([]SecurityLog); ok {
		levels := map[string]float64{}
		var order []string
		for _, entry := range logs {
			level := strings.ToLower(entry.Level.String())
			if level == "" {
				level = "info"
			}
			if _, seen := levels[level]; !seen {
				order = append(order, level)
			}
			levels[level]++
		}
		if _, ok := view.Counters["events"]; !ok {
			view.Counters["events"] = float64(len(logs))
		}
		if len(order) > 0 {
			points := make([]ChartPoint, 0, len(order))
			for _, level := range order {
				points = append(points, ChartPoint{Label: level, Value: levels[level]})
			}
			view.Charts = append(view.Charts, ChartSpec{Key: "levels", Title: "Événements par niveau", Kind: "pie", Points: points})
		}
	}
	return view
}

func backupsView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	backups, ok := data["backups"].([]Backup)
	if !ok {
		return view
	}
	view.Counters["count"] = float64(len(backups))
	if len(backups) > 0 {
		view.Badges = append(view.Badges, Badge{Key: "latest", Label: "Dernière", Value: backups[0].Name.String()})
	}
	return view
}

func autopilotView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	status, ok := data["autopilot"].(AutopilotStatus)
	if !ok {
		return view
	}
	actions := status.ActionsToday.Float()
	if actions == 0 {
		actions = float64(len(status.Actions))
	}
	view.Counters["actions"] = actions
	value := "inactif"
	if status.Enabled.Bool() {
		value = "actif"
	}
	view.Badges = append(view.Badges, Badge{Key: "enabled", Label: "Autopilot", Value: value, Tone: toneFor(status.Enabled.Bool(), "success", "")})
	if mode := status.Mode.String(); mode != "" {
		view.Badges = append(view.Badges, Badge{Key: "mode", Label: "Mode", Value: mode})
	}
	return view
}

func cacheView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	stats, ok := data["cache"].(CacheStats)
	if !ok {
		return view
	}
	view.Counters["hit_rate"] = stats.HitRate.Float()
	view.Counters["entries"] = stats.Entries.Float()
	view.Counters["saved"] = stats.SavedCost.Float()
	if stats.Hits+stats.Misses > 0 {
		view.Charts = append(view.Charts, ChartSpec{
			Key:   "ratio",
			Title: "Hits / Misses",
			Kind:  "pie",
			Points: []ChartPoint{
				{Label: "hits", Value: stats.Hits.Float()},
				{Label: "misses", Value: stats.Misses.Float()},
			},
		})
	}
	return view
}

func pricingView(data map[string]any) PanelView {
	view := PanelView{Counters: map[string]float64{}}
	plans, ok := data["pricing"].([]PricingPlan)
	if !ok {
		return view
	}
	view.Counters["plans"] = float64(len(plans))
	for _, plan := range plans {
		name := plan.Name.String()
		if name == "" {
			continue
		}
		view.Badges = append(view.Badges, Badge{
			Key:   CanonicalKey(name),
			Label: name,
			Value: formatAmount(plan.Price.Float(), 2) + currencySymbol(plan.Currency.String()),
		})
	}
	return view
}

func toneFor(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func isSevere(severity string) bool {
	switch strings.ToLower(severity) {
	case "high", "critical", "critique", "haute":
		return true
	default:
		return false
	}
}

func currencySymbol(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "EUR", "€":
		return "€"
	case "USD", "$":
		return "$"
	default:
		return " " + code
	}
}

func formatAmount(value float64, decimals int) string {
	return strconv.FormatFloat(value, 'f', decimals, 64)
}
