// Command arena runs the gold arena: a tick-driven capture-the-gold match between
// three pirate crews, one agent of which is steered over the HTTP/websocket API.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/talgya/gold-arena/internal/api"
	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
	"github.com/talgya/gold-arena/internal/economy"
	"github.com/talgya/gold-arena/internal/engine"
	"github.com/talgya/gold-arena/internal/entropy"
	"github.com/talgya/gold-arena/internal/llm"
	"github.com/talgya/gold-arena/internal/persistence"
	"github.com/talgya/gold-arena/internal/replay"
	"github.com/talgya/gold-arena/internal/telemetry"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML config overlay")
		autoplay    = flag.Bool("autoplay", false, "start a match on boot and begin the next one as soon as a match ends")
		writeConfig = flag.String("write-config", "", "write the effective config to this path and exit")
	)
	flag.Parse()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	if *writeConfig != "" {
		if err := cfg.WriteYAML(*writeConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, *autoplay); err != nil {
		slog.Error("arena stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, autoplay bool) error {
	slog.Info("Gold Arena",
		"teams", arena.NumTeams,
		"agents_per_team", cfg.Match.AgentsPerTeam,
		"starting_reserve", cfg.Match.StartingReserve,
		"winning_score", cfg.Match.WinningScore,
		"tick", cfg.Match.TickInterval,
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	progression, err := db.LoadProgression()
	if err != nil {
		// Unreadable progression resets to zero rather than aborting.
		slog.Error("progression unreadable, starting fresh", "error", err)
	}
	slog.Info("progression restored",
		"currency", humanize.Comma(int64(progression.Currency)),
		"speed_level", progression.SpeedLevel,
		"capacity_level", progression.CapacityLevel,
	)

	// ── Outputs ──────────────────────────────────────────────────────
	out, err := telemetry.NewOutputManager(cfg.Storage.TelemetryDir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Warn("config snapshot not written", "error", err)
	}
	recorder := replay.NewRecorder(cfg.Storage.ReplayDir, cfg)

	// ── Commentary ───────────────────────────────────────────────────
	var narrator llm.Narrator
	if client := llm.NewClient(cfg.Commentary.APIKey, cfg.Commentary.MaxPerMinute, cfg.Commentary.Timeout); client != nil && cfg.Commentary.Enabled {
		narrator = llm.HaikuNarrator{Client: client, MaxTokens: cfg.Commentary.MaxTokens}
		slog.Info("LLM commentary enabled (Haiku)")
	} else {
		slog.Warn("LLM commentary disabled, using canned phrases")
	}
	commentator := llm.NewCommentator(narrator, cfg.Commentary, entropy.Crypto{})
	commentator.OnLine = func(l llm.Line) {
		slog.Debug("commentary", "tick", l.Tick, "text", l.Text, "popup", l.Popup)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(cfg, progression)
	var tally telemetry.Tally

	sim.OnMatchStart = func(s arena.State) {
		tally.Reset(s)
		if err := recorder.Start(s); err != nil {
			slog.Error("replay not recording", "error", err)
		}
		if err := db.SaveEvents(s.MatchID, s.Events); err != nil {
			slog.Error("save events failed", "error", err)
		}
		commentator.Notify(s.Events)
	}
	sim.OnStep = func(in arena.Intent, dt float64, next arena.State) {
		if err := recorder.Record(in, dt, next); err != nil {
			slog.Error("replay write failed", "tick", next.Tick, "error", err)
		}
	}
	sim.OnEvents = func(events []arena.Event) {
		tally.Observe(events)
		commentator.Notify(events)

		matchID := sim.Snapshot().MatchID
		if err := db.SaveEvents(matchID, events); err != nil {
			slog.Error("save events failed", "error", err)
		}
		for _, ev := range events {
			if ev.Kind == arena.EventUpgrade {
				if err := db.SaveProgression(sim.Progression()); err != nil {
					slog.Error("save progression failed", "error", err)
				}
				break
			}
		}
	}
	sim.OnMatchEnd = func(final arena.State, p economy.Progression) {
		row := tally.Finish(final, time.Now())
		if err := db.SaveMatch(row); err != nil {
			slog.Error("save match failed", "error", err)
		}
		if err := out.WriteMatch(row); err != nil {
			slog.Error("telemetry write failed", "error", err)
		}
		if path, err := recorder.Finish(); err != nil {
			slog.Error("replay close failed", "error", err)
		} else if path != "" {
			slog.Info("replay saved", "path", path)
		}
		if err := db.SaveProgression(p); err != nil {
			slog.Error("save progression failed", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.Match.TickInterval)
	dt := cfg.TickSeconds()
	eng.OnTick = func(uint64) {
		switch sim.Status() {
		case arena.StatusActive:
			sim.Tick(dt) // Faults are logged inside; the previous snapshot stays live.
		case arena.StatusFinished:
			if autoplay {
				if err := sim.Acknowledge(); err == nil {
					startMatch(sim)
				}
			}
		}
	}
	if autoplay {
		startMatch(sim)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("ARENA_ADMIN_KEY not set, control endpoints are open")
	}
	apiServer := &api.Server{
		Sim:        sim,
		Eng:        eng,
		DB:         db,
		Commentary: commentator,
		Port:       cfg.Server.Port,
		AdminKey:   cfg.Server.AdminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go commentator.Run(ctx)

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Arena running... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	if path, err := recorder.Finish(); err == nil && path != "" {
		slog.Info("unfinished match replay saved", "path", path)
	}

	// Final save on shutdown.
	final := sim.Progression()
	if err := db.SaveProgression(final); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	slog.Info("progression saved", "currency", humanize.Comma(int64(final.Currency)))
	return nil
}

func startMatch(sim *engine.Simulation) {
	if _, err := sim.StartMatch(); err != nil {
		slog.Error("autoplay start failed", "error", err)
	}
}
