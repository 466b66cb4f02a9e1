// Command pilot drives the human agent of a running arena over the HTTP API.
// It observes the snapshot, decides on an intent, and posts it back every interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/gold-arena/internal/pilot"
)

func main() {
	var (
		autoStart = flag.Bool("start", true, "start a match whenever the arena is in the lobby")
		buy       = flag.Bool("buy", true, "spend currency on upgrades between matches")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("ARENA_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("ARENA_ADMIN_KEY")
	interval := time.Duration(envIntOrDefault("PILOT_INTERVAL_MS", 100)) * time.Millisecond
	opts := pilot.Options{AutoStart: *autoStart, Buy: *buy, Deadband: 0.3}

	slog.Info("Arena pilot starting", "api_url", apiURL, "interval", interval, "auto_start", opts.AutoStart, "buy", opts.Buy)

	observer := pilot.NewObserver(apiURL)
	actor := pilot.NewActor(apiURL, adminKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("waiting for arena API...")
	if err := waitForAPI(ctx, observer); err != nil {
		slog.Error("arena API unavailable", "error", err)
		os.Exit(1)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last pilot.Decision
	for {
		select {
		case <-ticker.C:
			last = runCycle(ctx, observer, actor, opts, last)
		case <-ctx.Done():
			slog.Info("shutting down")
			fmt.Println("Pilot stopped.")
			return
		}
	}
}

// runCycle executes one observe → decide → act cycle and returns the decision it acted on.
// An intent identical to the previous one is not re-sent since the arena holds it.
func runCycle(ctx context.Context, observer *pilot.Observer, actor *pilot.Actor, opts pilot.Options, last pilot.Decision) pilot.Decision {
	snap, err := observer.Observe(ctx)
	if err != nil {
		slog.Error("observation failed", "error", err)
		return last
	}

	d := pilot.Decide(snap, opts)
	if d.Action == pilot.ActionNone {
		return last
	}
	if d.Action == pilot.ActionIntent && last.Action == pilot.ActionIntent && d.Intent == last.Intent {
		return last
	}
	if d.Rationale != last.Rationale {
		slog.Info("decision made", "action", d.Action, "rationale", d.Rationale, "tick", snap.State.Tick)
	}

	if err := actor.Act(ctx, d); err != nil {
		slog.Error("action failed", "action", d.Action, "error", err)
		return last
	}
	if d.Action == pilot.ActionAcknowledge && snap.State.Winner != nil {
		slog.Info("match over", "winner", snap.State.Winner.String(), "scores", snap.State.Scores)
	}
	return d
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it responds.
// Gives up after 5 minutes.
func waitForAPI(ctx context.Context, observer *pilot.Observer) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !observer.Ready(ctx) {
		if time.Now().After(deadline) {
			return errors.New("not ready within 5 minutes")
		}
		slog.Info("arena not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	slog.Info("arena API is ready")
	return nil
}
