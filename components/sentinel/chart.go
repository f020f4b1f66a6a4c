package sentinel

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"golang.org/x/sync/singleflight"
)

const (
	chartHeight       = "320px"
	chartCacheTTL     = 5 * time.Minute
	chartCacheEntries = 256
)

// RenderCache memoizes chart markup by key.
type RenderCache interface {
	GetOrRender(key string, render func() (string, error)) (string, error)
}

// ChartCache keeps rendered markup for ttl and at most max entries. Concurrent misses on
// one key render once.
type ChartCache struct {
	ttl   time.Duration
	max   int
	clock Clock

	mu      sync.Mutex
	entries map[string]chartEntry
	group   singleflight.Group
}

type chartEntry struct {
	markup  string
	expires time.Time
}

// NewChartCache builds a cache holding up to 256 charts.
func NewChartCache(ttl time.Duration) *ChartCache {
	return &ChartCache{ttl: ttl, max: chartCacheEntries, clock: realClock{}, entries: map[string]chartEntry{}}
}

// GetOrRender returns the live entry for key or renders and stores a new one. A zero
// ttl disables storage.
func (c *ChartCache) GetOrRender(key string, render func() (string, error)) (string, error) {
	if c == nil || c.ttl <= 0 {
		return render()
	}
	if markup, ok := c.lookup(key); ok {
		return markup, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		markup, err := render()
		if err != nil {
			return "", err
		}
		c.store(key, markup)
		return markup, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len reports the number of stored entries, expired ones included until evicted.
func (c *ChartCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ChartCache) lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.clock.Now().Before(entry.expires) {
		delete(c.entries, key)
		return "", false
	}
	return entry.markup, true
}

func (c *ChartCache) store(key, markup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if len(c.entries) >= c.max {
		c.evictLocked(now)
	}
	c.entries[key] = chartEntry{markup: markup, expires: now.Add(c.ttl)}
}

// evictLocked drops expired entries, then the one closest to expiry if still full.
func (c *ChartCache) evictLocked(now time.Time) {
	var (
		oldest    string
		oldestExp time.Time
	)
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
			continue
		}
		if oldest == "" || entry.expires.Before(oldestExp) {
			oldest, oldestExp = key, entry.expires
		}
	}
	if len(c.entries) >= c.max && oldest != "" {
		delete(c.entries, oldest)
	}
}

// RenderedChart pairs a spec with its echarts markup.
type RenderedChart struct {
	ChartSpec
	HTML string `json:"html,omitempty"`
}

type chartBuilder func(r *ChartRenderer, spec ChartSpec) interface{ Render(io.Writer) error }

var chartBuilders = map[string]chartBuilder{
	"":      buildPie,
	"pie":   buildPie,
	"donut": buildDonut,
	"bar":   buildBar,
	"gauge": buildGauge,
}

// ChartRenderer turns panel chart specs into go-echarts markup.
type ChartRenderer struct {
	cache      RenderCache
	theme      string
	assetsHost string
}

// ChartRendererOption customizes a ChartRenderer.
type ChartRendererOption func(*ChartRenderer)

// WithChartCache swaps the render cache. Nil renders every time.
func WithChartCache(cache RenderCache) ChartRendererOption {
	return func(r *ChartRenderer) { r.cache = cache }
}

// WithChartTheme picks an echarts theme.
func WithChartTheme(theme string) ChartRendererOption {
	return func(r *ChartRenderer) {
		if theme != "" {
			r.theme = theme
		}
	}
}

// WithChartAssetsHost loads the echarts scripts from host instead of the default CDN.
func WithChartAssetsHost(host string) ChartRendererOption {
	return func(r *ChartRenderer) { r.assetsHost = host }
}

// NewChartRenderer builds a renderer with the default cache and the westeros theme.
func NewChartRenderer(options ...ChartRendererOption) *ChartRenderer {
	r := &ChartRenderer{cache: NewChartCache(chartCacheTTL), theme: types.ThemeWesteros}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Render returns the markup for spec. The cache key covers the owner, the chart key and
// every point, so changed data always renders again.
func (r *ChartRenderer) Render(owner string, spec ChartSpec) (RenderedChart, error) {
	kind := strings.ToLower(spec.Kind)
	build, ok := chartBuilders[kind]
	if !ok {
		return RenderedChart{}, fmt.Errorf("sentinel: unsupported chart type %q", spec.Kind)
	}
	render := func() (string, error) {
		var buf bytes.Buffer
		if err := build(r, spec).Render(&buf); err != nil {
			return "", fmt.Errorf("sentinel: render chart %s: %w", spec.Key, err)
		}
		return buf.String(), nil
	}
	var (
		markup string
		err    error
	)
	if r.cache == nil {
		markup, err = render()
	} else {
		markup, err = r.cache.GetOrRender(owner+"/"+spec.Key+"#"+specDigest(spec), render)
	}
	if err != nil {
		return RenderedChart{}, err
	}
	return RenderedChart{ChartSpec: spec, HTML: markup}, nil
}

func (r *ChartRenderer) baseOptions(title string, legend bool) []charts.GlobalOpts {
	initOpts := opts.Initialization{Theme: r.theme, Width: "100%", Height: chartHeight, AssetsHost: r.assetsHost}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(legend)}),
	}
}

func pieItems(points []ChartPoint) []opts.PieData {
	items := make([]opts.PieData, 0, len(points))
	for i, p := range points {
		label := p.Label
		if label == "" {
			label = "#" + strconv.Itoa(i+1)
		}
		items = append(items, opts.PieData{Name: label, Value: p.Value})
	}
	return items
}

func buildPie(r *ChartRenderer, spec ChartSpec) interface{ Render(io.Writer) error } {
	pie := charts.NewPie()
	pie.SetGlobalOptions(r.baseOptions(spec.Title, true)...)
	pie.AddSeries(spec.Title, pieItems(spec.Points))
	return pie
}

func buildDonut(r *ChartRenderer, spec ChartSpec) interface{ Render(io.Writer) error } {
	pie := charts.NewPie()
	pie.SetGlobalOptions(r.baseOptions(spec.Title, true)...)
	pie.AddSeries(spec.Title, pieItems(spec.Points)).
		SetSeriesOptions(charts.WithPieChartOpts(opts.PieChart{Radius: []string{"45%", "70%"}}))
	return pie
}

func buildBar(r *ChartRenderer, spec ChartSpec) interface{ Render(io.Writer) error } {
	bar := charts.NewBar()
	bar.SetGlobalOptions(r.baseOptions(spec.Title, false)...)
	labels := make([]string, 0, len(spec.Points))
	values := make([]opts.BarData, 0, len(spec.Points))
	for _, p := range spec.Points {
		labels = append(labels, p.Label)
		values = append(values, opts.BarData{Name: p.Label, Value: p.Value})
	}
	bar.SetXAxis(labels).AddSeries(spec.Title, values)
	return bar
}

// buildGauge shows the first point as a percentage.
func buildGauge(r *ChartRenderer, spec ChartSpec) interface{ Render(io.Writer) error } {
	gauge := charts.NewGauge()
	gauge.SetGlobalOptions(r.baseOptions(spec.Title, false)...)
	var items []opts.GaugeData
	if len(spec.Points) > 0 {
		p := spec.Points[0]
		items = append(items, opts.GaugeData{Name: p.Label, Value: math.Round(p.Value*10) / 10})
	}
	gauge.AddSeries(spec.Title, items)
	return gauge
}

func specDigest(spec ChartSpec) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|", spec.Kind, spec.Title)
	for _, p := range spec.Points {
		fmt.Fprintf(h, "%s=%s;", p.Label, strconv.FormatFloat(p.Value, 'g', -1, 64))
	}
	return strconv.FormatUint(h.Sum64(), 36)
}
