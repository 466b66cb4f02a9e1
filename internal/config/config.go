// Package config provides the tunable arena constants and their loading.
// Embedded defaults are overlaid by an optional YAML file and then by environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable of the arena. Engine logic never hardcodes these values.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Match       MatchConfig       `yaml:"match"`
	Movement    MovementConfig    `yaml:"movement"`
	Interaction InteractionConfig `yaml:"interaction"`
	Jail        JailConfig        `yaml:"jail"`
	Teams       TeamsConfig       `yaml:"teams"`
	Economy     EconomyConfig     `yaml:"economy"`
	Commentary  CommentaryConfig  `yaml:"commentary"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
}

// Vec2 is a planar point in arena units (height is fixed).
type Vec2 struct {
	X float64 `yaml:"x" json:"x"`
	Z float64 `yaml:"z" json:"z"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MatchConfig holds match setup and win parameters.
type MatchConfig struct {
	StartingReserve int           `yaml:"starting_reserve"` // Gold in each base at match start
	WinningScore    int           `yaml:"winning_score"`
	AgentsPerTeam   int           `yaml:"agents_per_team"`
	HumanTeam       string        `yaml:"human_team"` // Team whose first agent is human-controlled
	TickInterval    time.Duration `yaml:"tick_interval"`
}

// MovementConfig holds per-tick displacement speeds.
type MovementConfig struct {
	BaseSpeed       float64 `yaml:"base_speed"`       // Human, before upgrades
	AutonomousSpeed float64 `yaml:"autonomous_speed"` // Every autonomous agent
	ArrivalEpsilon  float64 `yaml:"arrival_epsilon"`  // Seek stops inside this distance
}

// InteractionConfig holds the spatial thresholds.
type InteractionConfig struct {
	TagDistance   float64 `yaml:"tag_distance"`
	StealDistance float64 `yaml:"steal_distance"` // Also the "at a base" radius for deposits
	DefenseRadius float64 `yaml:"defense_radius"` // AI defends its base inside this radius
}

// JailConfig holds jail timing and location.
type JailConfig struct {
	Duration float64 `yaml:"duration"` // Seconds of simulated time
	Position Vec2    `yaml:"position"`
}

// TeamsConfig holds the base location of each team.
type TeamsConfig struct {
	Red   Vec2 `yaml:"red"`
	Green Vec2 `yaml:"green"`
	Blue  Vec2 `yaml:"blue"`
}

// EconomyConfig holds the cross-match progression economy.
type EconomyConfig struct {
	CurrencyPerWin   int     `yaml:"currency_per_win"`
	UpgradeBaseCost  int     `yaml:"upgrade_base_cost"`
	SpeedPerLevel    float64 `yaml:"speed_per_level"`
	CapacityPerLevel int     `yaml:"capacity_per_level"`
}

// CommentaryConfig controls the flavor-text collaborator.
type CommentaryConfig struct {
	Enabled               bool          `yaml:"enabled"`
	APIKey                string        `yaml:"-" json:"-"` // Env only
	AutonomousStealChance float64       `yaml:"autonomous_steal_chance"`
	Timeout               time.Duration `yaml:"timeout"`
	QueueSize             int           `yaml:"queue_size"`
	MaxPerMinute          int           `yaml:"max_per_minute"`
	MaxTokens             int           `yaml:"max_tokens"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"-" json:"-"` // Env only. Empty = POST endpoints open.
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DBPath       string `yaml:"db_path"`
	ReplayDir    string `yaml:"replay_dir"`    // Empty = replay recording disabled
	TelemetryDir string `yaml:"telemetry_dir"` // Empty = telemetry disabled
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ARENA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ARENA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		} else {
			slog.Warn("ignoring invalid ARENA_PORT", "value", v)
		}
	}
	if v := os.Getenv("ARENA_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v, ok := os.LookupEnv("ARENA_REPLAY_DIR"); ok {
		c.Storage.ReplayDir = v
	}
	if v, ok := os.LookupEnv("ARENA_TELEMETRY_DIR"); ok {
		c.Storage.TelemetryDir = v
	}
	c.Server.AdminKey = os.Getenv("ARENA_ADMIN_KEY")
	c.Commentary.APIKey = os.Getenv("ANTHROPIC_API_KEY")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Match.StartingReserve < 0 {
		errs = append(errs, errors.New("match.starting_reserve must be >= 0"))
	}
	if c.Match.WinningScore <= 0 {
		errs = append(errs, errors.New("match.winning_score must be > 0"))
	}
	if c.Match.AgentsPerTeam <= 0 {
		errs = append(errs, errors.New("match.agents_per_team must be > 0"))
	}
	switch strings.ToUpper(c.Match.HumanTeam) {
	case "RED", "GREEN", "BLUE", "":
	default:
		errs = append(errs, fmt.Errorf("match.human_team %q is not a team", c.Match.HumanTeam))
	}
	if c.Match.TickInterval <= 0 {
		errs = append(errs, errors.New("match.tick_interval must be > 0"))
	}
	if c.Movement.BaseSpeed <= 0 || c.Movement.AutonomousSpeed <= 0 {
		errs = append(errs, errors.New("movement speeds must be > 0"))
	}
	if c.Interaction.TagDistance <= 0 || c.Interaction.StealDistance <= 0 {
		errs = append(errs, errors.New("interaction distances must be > 0"))
	}
	if c.Jail.Duration <= 0 {
		errs = append(errs, errors.New("jail.duration must be > 0"))
	}
	if c.Economy.UpgradeBaseCost <= 0 {
		errs = append(errs, errors.New("economy.upgrade_base_cost must be > 0"))
	}
	if c.Economy.CurrencyPerWin < 0 {
		errs = append(errs, errors.New("economy.currency_per_win must be >= 0"))
	}
	if c.Commentary.AutonomousStealChance < 0 || c.Commentary.AutonomousStealChance > 1 {
		errs = append(errs, errors.New("commentary.autonomous_steal_chance must be in [0,1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TickSeconds returns the tick interval as simulated seconds (the dt fed to Step).
func (c *Config) TickSeconds() float64 {
	return c.Match.TickInterval.Seconds()
}

// LogLevel maps Log.Level to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteYAML saves the effective configuration.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
