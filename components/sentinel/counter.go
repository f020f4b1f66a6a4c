package sentinel

import (
	"math"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultCounterDuration is the eased animation length.
	DefaultCounterDuration = time.Second
	// FrameInterval is the animation tick, roughly one display frame.
	FrameInterval = 16 * time.Millisecond
)

// Ease is the cubic ease-out curve 1-(1-p)^3 with p clamped to [0,1].
func Ease(p float64) float64 {
	switch {
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	inv := 1 - p
	return 1 - inv*inv*inv
}

// CounterOptions configures a Counter.
type CounterOptions struct {
	Label    string
	Duration time.Duration
	Decimals int
	Suffix   string
	Initial  float64
}

// CounterSnapshot is the render-ready view of a counter.
type CounterSnapshot struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Target    float64 `json:"target"`
	Display   string  `json:"display"`
	Animating bool    `json:"animating"`
}

// Counter interpolates a displayed number toward a target.
type Counter struct {
	mu        sync.Mutex
	label     string
	duration  time.Duration
	decimals  int
	suffix    string
	from      float64
	target    float64
	displayed float64
	startedAt time.Time
	animating bool
}

// NewCounter returns a settled counter showing opts.Initial.
func NewCounter(opts CounterOptions) *Counter {
	if opts.Duration <= 0 {
		opts.Duration = DefaultCounterDuration
	}
	if opts.Decimals < 0 {
		opts.Decimals = 0
	}
	return &Counter{
		label:     opts.Label,
		duration:  opts.Duration,
		decimals:  opts.Decimals,
		suffix:    opts.Suffix,
		from:      opts.Initial,
		target:    opts.Initial,
		displayed: opts.Initial,
	}
}

// SetTarget starts an animation from the current displayed value. It returns false
// when target equals the last committed target, leaving any running animation alone.
func (c *Counter) SetTarget(target float64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if target == c.target {
		return false
	}
	c.from = c.displayed
	c.target = target
	c.startedAt = now
	c.animating = c.from != target
	return true
}

// Tick advances the animation to now and reports whether it is still running.
func (c *Counter) Tick(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.animating {
		return false
	}
	p := float64(now.Sub(c.startedAt)) / float64(c.duration)
	if p >= 1 {
		c.displayed = c.target
		c.animating = false
		return false
	}
	value := c.from + (c.target-c.from)*Ease(p)
	lo, hi := math.Min(c.from, c.target), math.Max(c.from, c.target)
	c.displayed = math.Min(hi, math.Max(lo, value))
	return true
}

// Value returns the displayed number.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

// Target returns the last committed target.
func (c *Counter) Target() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Animating reports whether an animation is in progress.
func (c *Counter) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.animating
}

// Display formats the displayed value with the configured decimals and suffix.
func (c *Counter) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format(c.displayed)
}

// Snapshot copies the counter state.
func (c *Counter) Snapshot() CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CounterSnapshot{
		Label:     c.label,
		Value:     c.displayed,
		Target:    c.target,
		Display:   c.format(c.displayed),
		Animating: c.animating,
	}
}

func (c *Counter) format(value float64) string {
	scale := math.Pow10(c.decimals)
	rounded := math.Round(value*scale) / scale
	return strconv.FormatFloat(rounded, 'f', c.decimals, 64) + c.suffix
}

// AnimatorOptions configures an Animator.
type AnimatorOptions struct {
	Clock    Clock
	Interval time.Duration
	// OnFrame receives the counter snapshots after each tick.
	OnFrame func([]CounterSnapshot)
}

// Animator drives a set of counters with a shared frame ticker. The ticker only runs
// while at least one counter is animating.
type Animator struct {
	clock    Clock
	interval time.Duration
	onFrame  func([]CounterSnapshot)

	mu       sync.Mutex
	keys     []string
	counters map[string]*Counter
	running  bool
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

// NewAnimator builds an idle animator.
func NewAnimator(opts AnimatorOptions) *Animator {
	if opts.Interval <= 0 {
		opts.Interval = FrameInterval
	}
	return &Animator{
		clock:    normalizeClock(opts.Clock),
		interval: opts.Interval,
		onFrame:  opts.OnFrame,
		counters: make(map[string]*Counter),
	}
}

// Add registers a counter under key, replacing any previous one.
func (a *Animator) Add(key string, counter *Counter) {
	if counter == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.counters[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.counters[key] = counter
}

// Counter returns the counter registered under key.
func (a *Animator) Counter(key string) (*Counter, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.counters[key]
	return c, ok
}

// SetTarget retargets one counter and starts the ticker if needed.
func (a *Animator) SetTarget(key string, target float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	counter, ok := a.counters[key]
	if !ok {
		return false
	}
	if !counter.SetTarget(target, a.clock.Now()) {
		return false
	}
	if a.closed {
		counter.Tick(a.clock.Now().Add(counter.duration))
		return true
	}
	if counter.Animating() {
		a.startLocked()
	}
	return true
}

// Step advances every counter to now and reports whether any is still animating.
func (a *Animator) Step(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stepLocked(now)
}

// Running reports whether the frame ticker is active.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Snapshot returns counter snapshots in registration order.
func (a *Animator) Snapshot() []CounterSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Close stops the ticker. Later retargets update values without animating.
func (a *Animator) Close() {
	a.mu.Lock()
	a.closed = true
	stop, done := a.stop, a.done
	if a.running {
		close(stop)
		a.running = false
	}
	a.stop, a.done = nil, nil
	a.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (a *Animator) startLocked() {
	if a.running || a.closed {
		return
	}
	a.running = true
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.loop(a.clock.NewTicker(a.interval), a.stop, a.done)
}

func (a *Animator) loop(ticker Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			a.mu.Lock()
			select {
			case <-stop:
				a.mu.Unlock()
				return
			default:
			}
			animating := a.stepLocked(now)
			frame := a.snapshotLocked()
			if !animating {
				a.running = false
				a.stop, a.done = nil, nil
			}
			a.mu.Unlock()
			if a.onFrame != nil {
				a.onFrame(frame)
			}
			if !animating {
				return
			}
		}
	}
}

func (a *Animator) stepLocked(now time.Time) bool {
	animating := false
	for _, key := range a.keys {
		if a.counters[key].Tick(now) {
			animating = true
		}
	}
	return animating
}

func (a *Animator) snapshotLocked() []CounterSnapshot {
	out := make([]CounterSnapshot, 0, len(a.keys))
	for _, key := range a.keys {
		out = append(out, a.counters[key].Snapshot())
	}
	return out
}
