// Package persistence provides SQLite-based storage for progression, match history and events.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/economy"
	"github.com/talgya/gold-arena/internal/telemetry"
)

// ErrNotFound is returned for a missing metadata key.
var ErrNotFound = errors.New("not found")

const progressionKey = "progression"

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS arena_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		winner TEXT NOT NULL,
		teams INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		red_score INTEGER NOT NULL,
		green_score INTEGER NOT NULL,
		blue_score INTEGER NOT NULL,
		steals INTEGER NOT NULL,
		tags INTEGER NOT NULL,
		deposits INTEGER NOT NULL,
		human_steals INTEGER NOT NULL,
		human_tags INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		agent TEXT NOT NULL,
		team TEXT NOT NULL,
		other TEXT NOT NULL,
		from_team TEXT NOT NULL,
		amount INTEGER NOT NULL,
		human INTEGER NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_match ON events(match_id);
	CREATE INDEX IF NOT EXISTS idx_matches_finished ON matches(finished_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair in arena metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO arena_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM arena_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}

// SaveProgression stores the progression as a JSON blob.
func (db *DB) SaveProgression(p economy.Progression) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progression: %w", err)
	}
	if err := db.SaveMeta(progressionKey, string(blob)); err != nil {
		return fmt.Errorf("save progression: %w", err)
	}
	slog.Debug("progression saved", "currency", p.Currency, "speed_level", p.SpeedLevel, "capacity_level", p.CapacityLevel)
	return nil
}

// LoadProgression restores the progression. A fresh database yields the zero progression.
// A corrupt blob is reported and the zero progression returned.
func (db *DB) LoadProgression() (economy.Progression, error) {
	blob, err := db.GetMeta(progressionKey)
	if errors.Is(err, ErrNotFound) {
		return economy.Progression{}, nil
	}
	if err != nil {
		return economy.Progression{}, fmt.Errorf("load progression: %w", err)
	}
	var p economy.Progression
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return economy.Progression{}, fmt.Errorf("decode progression: %w", err)
	}
	if p.Currency < 0 || p.SpeedLevel < 0 || p.CapacityLevel < 0 {
		return economy.Progression{}, fmt.Errorf("decode progression: negative field in %s", blob)
	}
	return p, nil
}

// SaveMatch records a finished match. Saving the same match twice replaces the row.
func (db *DB) SaveMatch(row telemetry.MatchRow) error {
	_, err := db.conn.NamedExec(`
		INSERT OR REPLACE INTO matches
			(id, winner, teams, ticks, red_score, green_score, blue_score,
			 steals, tags, deposits, human_steals, human_tags, finished_at)
		VALUES
			(:id, :winner, :teams, :ticks, :red_score, :green_score, :blue_score,
			 :steals, :tags, :deposits, :human_steals, :human_tags, :finished_at)`,
		row,
	)
	if err != nil {
		return fmt.Errorf("save match %s: %w", row.MatchID, err)
	}
	return nil
}

// RecentMatches returns the most recent N finished matches, newest first.
func (db *DB) RecentMatches(limit int) ([]telemetry.MatchRow, error) {
	var rows []telemetry.MatchRow
	err := db.conn.Select(&rows,
		`SELECT id, winner, teams, ticks, red_score, green_score, blue_score,
			steals, tags, deposits, human_steals, human_tags, finished_at
		FROM matches ORDER BY finished_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	return rows, err
}

type eventRow struct {
	MatchID     string `db:"match_id"`
	Tick        uint64 `db:"tick"`
	Kind        string `db:"kind"`
	Agent       string `db:"agent"`
	Team        string `db:"team"`
	Other       string `db:"other"`
	From        string `db:"from_team"`
	Amount      int    `db:"amount"`
	Human       bool   `db:"human"`
	Description string `db:"description"`
}

// SaveEvents appends a match's events to the database.
func (db *DB) SaveEvents(matchID string, events []arena.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.NamedExec(`
			INSERT INTO events (match_id, tick, kind, agent, team, other, from_team, amount, human, description)
			VALUES (:match_id, :tick, :kind, :agent, :team, :other, :from_team, :amount, :human, :description)`,
			eventRow{
				MatchID:     matchID,
				Tick:        e.Tick,
				Kind:        string(e.Kind),
				Agent:       e.Agent,
				Team:        e.Team.String(),
				Other:       e.Other,
				From:        e.From.String(),
				Amount:      e.Amount,
				Human:       e.Human,
				Description: e.Description,
			},
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]arena.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT match_id, tick, kind, agent, team, other, from_team, amount, human, description
		FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]arena.Event, 0, len(rows))
	for _, r := range rows {
		team, err := arena.ParseTeam(r.Team)
		if err != nil {
			return nil, fmt.Errorf("event team: %w", err)
		}
		from, err := arena.ParseTeam(r.From)
		if err != nil {
			return nil, fmt.Errorf("event from: %w", err)
		}
		events = append(events, arena.Event{
			Tick:        r.Tick,
			Kind:        arena.EventKind(r.Kind),
			Agent:       r.Agent,
			Team:        team,
			Other:       r.Other,
			From:        from,
			Amount:      r.Amount,
			Human:       r.Human,
			Description: r.Description,
		})
	}
	return events, nil
}
