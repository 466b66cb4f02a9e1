package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/talgya/gold-arena/internal/config"
)

// OutputManager appends match rows to matches.csv in its directory.
type OutputManager struct {
	dir string

	mu            sync.Mutex
	matchFile     *os.File
	headerWritten bool
}

// NewOutputManager opens (or creates) matches.csv under dir.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "matches.csv"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening matches.csv: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat matches.csv: %w", err)
	}

	// An existing file already has its header.
	return &OutputManager{dir: dir, matchFile: f, headerWritten: info.Size() > 0}, nil
}

// WriteConfig saves the effective configuration next to the CSV.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteMatch appends one row to matches.csv.
func (om *OutputManager) WriteMatch(row MatchRow) error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()

	records := []MatchRow{row}
	if !om.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.matchFile); err != nil {
			return fmt.Errorf("writing match: %w", err)
		}
		om.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.matchFile); err != nil {
		return fmt.Errorf("writing match: %w", err)
	}
	return nil
}

// Close closes the CSV file.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()
	return om.matchFile.Close()
}
