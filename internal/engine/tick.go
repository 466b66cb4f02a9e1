// Package engine provides the match state machine and the fixed-rate tick loop that drives it.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// DefaultInterval is the reference cadence: one tick per 50ms of simulated time.
const DefaultInterval = 50 * time.Millisecond

// Engine drives the simulation forward at a fixed rate.
// Ticks and speed are read by the API while Run is looping, so both are atomic.
type Engine struct {
	Interval time.Duration // Base tick interval

	tick    atomic.Uint64 // Ticks driven since start (monotonic)
	speed   atomic.Uint64 // float64 bits. Multiplier: 1.0 = real-time, 0 = paused
	running atomic.Bool

	// OnTick runs once per tick on the engine goroutine. It must not block.
	OnTick func(tick uint64)
}

// NewEngine creates an engine with the reference cadence.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e := &Engine{Interval: interval}
	e.SetSpeed(1.0)
	return e
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the speed multiplier. Safe to call while Run is looping.
func (e *Engine) SetSpeed(v float64) { e.speed.Store(math.Float64bits(v)) }

// Ticks returns the number of ticks driven since start.
func (e *Engine) Ticks() uint64 { return e.tick.Load() }

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the tick loop. Blocks until Stop is called or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	slog.Info("tick engine started", "interval", e.Interval, "speed", e.Speed())

	for e.running.Load() {
		if ctx.Err() != nil {
			break
		}
		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			sleepCtx(ctx, 100*time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			sleepCtx(ctx, target-elapsed)
		}
	}

	e.running.Store(false)
	slog.Info("tick engine stopped", "tick", e.Ticks())
}

// Stop halts the tick loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) step() {
	n := e.tick.Add(1)
	if e.OnTick != nil {
		e.OnTick(n)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
