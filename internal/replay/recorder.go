package replay

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
)

// Recorder keeps one recording per match under a directory.
// A nil Recorder records nothing.
type Recorder struct {
	dir string
	cfg *config.Config

	mu  sync.Mutex
	cur *Writer
}

// NewRecorder returns nil when dir is empty (recording disabled).
func NewRecorder(dir string, cfg *config.Config) *Recorder {
	if dir == "" {
		return nil
	}
	return &Recorder{dir: dir, cfg: cfg}
}

// PathFor returns the recording path for a match.
func (r *Recorder) PathFor(matchID string) string {
	return filepath.Join(r.dir, fmt.Sprintf("match-%s.jsonl.zst", matchID))
}

// Start opens a recording for a freshly started match, closing any unfinished one.
func (r *Recorder) Start(s arena.State) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur != nil {
		slog.Warn("replay left open, closing", "path", r.cur.Path())
		r.cur.Close()
		r.cur = nil
	}
	w, err := Create(r.PathFor(s.MatchID), r.cfg, s)
	if err != nil {
		return fmt.Errorf("start replay: %w", err)
	}
	r.cur = w
	return nil
}

// Record appends a tick to the open recording.
func (r *Recorder) Record(in arena.Intent, dt float64, next arena.State) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	return r.cur.Record(in, dt, next)
}

// Finish closes the open recording and returns its path.
func (r *Recorder) Finish() (string, error) {
	if r == nil {
		return "", nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return "", nil
	}
	path := r.cur.Path()
	err := r.cur.Close()
	r.cur = nil
	return path, err
}
