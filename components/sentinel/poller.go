package sentinel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	// ErrCycleInFlight is returned when a cycle is requested while another one runs.
	ErrCycleInFlight = errors.New("sentinel: refresh cycle already in flight")

	errPollerRunning   = errors.New("sentinel: poller already running")
	errMissingCycle    = errors.New("sentinel: poller cycle is required")
	errInvalidInterval = errors.New("sentinel: poller interval must be positive")
)

// CycleFunc performs one refresh cycle. Returned errors are logged and counted, never
// propagated out of the loop.
type CycleFunc func(ctx context.Context) error

// PollerOptions configures a Poller.
type PollerOptions struct {
	Name      string
	Interval  time.Duration
	Cycle     CycleFunc
	Clock     Clock
	Telemetry Telemetry
	Logger    *zap.Logger
}

// PollerState tracks tick/pause/error state for a poller.
type PollerState struct {
	Interval        time.Duration `json:"interval"`
	Running         bool          `json:"running"`
	Paused          bool          `json:"paused"`
	InFlight        bool          `json:"in_flight"`
	Cycles          int           `json:"cycles"`
	Skipped         int           `json:"skipped"`
	LastError       string        `json:"last_error,omitempty"`
	LastErrorAt     time.Time     `json:"last_error_at"`
	LastTickOK      bool          `json:"last_tick_ok"`
	LastTickAt      time.Time     `json:"last_tick_at"`
	ConsecutiveErrs int           `json:"consecutive_errors"`
}

// Poller re-runs a cycle on a fixed interval until stopped. The first cycle runs as
// soon as the poller starts. Cycles never overlap.
type Poller struct {
	opts PollerOptions

	mu     sync.Mutex
	state  PollerState
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
}

// NewPoller validates options and builds a stopped poller.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Cycle == nil {
		return nil, errMissingCycle
	}
	if opts.Interval <= 0 {
		return nil, errInvalidInterval
	}
	opts.Clock = normalizeClock(opts.Clock)
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	opts.Logger = normalizeLogger(opts.Logger)
	return &Poller{
		opts:  opts,
		state: PollerState{Interval: opts.Interval},
		kick:  make(chan struct{}, 1),
	}, nil
}

// Start launches the refresh loop. The loop ends when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state.Running {
		p.mu.Unlock()
		return errPollerRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := p.opts.Clock.NewTicker(p.opts.Interval)
	p.cancel = cancel
	p.done = done
	p.state.Running = true
	p.mu.Unlock()

	go p.loop(loopCtx, ticker, done)
	return nil
}

func (p *Poller) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	defer func() {
		p.mu.Lock()
		p.state.Running = false
		p.mu.Unlock()
	}()

	_ = p.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if p.Paused() {
				continue
			}
			_ = p.RunCycle(ctx)
		case <-p.kick:
			_ = p.RunCycle(ctx)
		}
	}
}

// Stop cancels the loop and any in-flight cycle, then waits for the loop to exit.
// Stop is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Pause stops scheduled cycles without tearing the loop down.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Paused = true
}

// Resume re-enables scheduled cycles.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Paused = false
}

// Paused reports whether scheduled cycles are suppressed.
func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Paused
}

// Refresh asks a running loop for an immediate cycle. A stopped poller runs the cycle
// synchronously instead.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	running := p.state.Running
	p.mu.Unlock()
	if !running {
		return p.RunCycle(ctx)
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
	return nil
}

// RunCycle executes one cycle now. It returns ErrCycleInFlight when a cycle is
// already running.
func (p *Poller) RunCycle(ctx context.Context) error {
	if !p.begin() {
		p.opts.Telemetry.Record(ctx, "sentinel.poll.skipped", map[string]any{"panel": p.opts.Name})
		return ErrCycleInFlight
	}
	cycleID := ulid.Make().String()
	started := p.opts.Clock.Now()
	err := p.opts.Cycle(ctx)
	cancelled := ctx.Err() != nil
	p.finish(started, err, cancelled)

	payload := map[string]any{
		"panel":       p.opts.Name,
		"cycle":       cycleID,
		"duration_ms": p.opts.Clock.Now().Sub(started).Milliseconds(),
	}
	switch {
	case cancelled:
		p.opts.Telemetry.Record(ctx, "sentinel.poll.cancelled", payload)
	case err != nil:
		payload["error"] = err.Error()
		p.opts.Telemetry.Record(ctx, "sentinel.poll.error", payload)
		p.opts.Logger.Warn("refresh cycle failed",
			zap.String("panel", p.opts.Name),
			zap.String("cycle", cycleID),
			zap.Error(err),
		)
	default:
		p.opts.Telemetry.Record(ctx, "sentinel.poll.ok", payload)
	}
	return err
}

// State returns a copy of the poller state.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.InFlight {
		p.state.Skipped++
		return false
	}
	p.state.InFlight = true
	return true
}

func (p *Poller) finish(at time.Time, err error, cancelled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.InFlight = false
	if cancelled {
		return
	}
	p.state.Cycles++
	p.state.LastTickAt = at
	if err != nil {
		p.state.LastTickOK = false
		p.state.LastError = err.Error()
		p.state.LastErrorAt = at
		p.state.ConsecutiveErrs++
		return
	}
	p.state.LastTickOK = true
	p.state.ConsecutiveErrs = 0
}
