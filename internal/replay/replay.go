// Package replay records matches as zstd-compressed JSONL and re-runs them to
// check that the step function reproduces every tick's digest.
//
// A replay file holds one header line followed by one line per tick:
//
//	{"header":{"match_id":...,"config":{...},"initial":{...}}}
//	{"tick":1,"dt":0.05,"intent":{...},"digest":"9f2c..."}
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
	"github.com/talgya/gold-arena/internal/engine"
)

// ErrMismatch is returned when a replayed tick diverges from the recording.
var ErrMismatch = errors.New("replay mismatch")

// Header describes the starting point of a recording.
type Header struct {
	MatchID  string         `json:"match_id"`
	Recorded time.Time      `json:"recorded"`
	Config   *config.Config `json:"config"`
	Initial  arena.State    `json:"initial"`
}

// Entry is one recorded tick.
type Entry struct {
	Tick   uint64       `json:"tick"`
	DT     float64      `json:"dt"`
	Intent arena.Intent `json:"intent"`
	Digest string       `json:"digest"`
}

type line struct {
	Header *Header `json:"header,omitempty"`
	*Entry
}

// FormatDigest renders a state digest the way recordings store it.
func FormatDigest(d uint64) string { return fmt.Sprintf("%016x", d) }

// Writer appends JSONL lines through a zstd encoder.
type Writer struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create starts a recording file at path and writes its header.
func Create(path string, cfg *config.Config, initial arena.State) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w := &Writer{path: path, f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}

	initial = initial.Clone()
	initial.Events = nil
	h := Header{MatchID: initial.MatchID, Recorded: time.Now().UTC(), Config: cfg, Initial: initial}
	if err := w.write(line{Header: &h}); err != nil {
		w.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// Record appends the tick that produced next.
func (w *Writer) Record(in arena.Intent, dt float64, next arena.State) error {
	return w.write(line{Entry: &Entry{
		Tick:   next.Tick,
		DT:     dt,
		Intent: in,
		Digest: FormatDigest(next.Digest()),
	}})
}

func (w *Writer) write(v line) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return os.ErrClosed
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the recording.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// Result summarizes a verified recording.
type Result struct {
	MatchID string
	Ticks   uint64
	Final   arena.State
}

// Verify re-runs a recording through engine.Step and compares every digest.
func Verify(r io.Reader) (Result, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Result{}, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("empty recording: %w", ErrMismatch)
	}
	var first line
	if err := json.Unmarshal(sc.Bytes(), &first); err != nil {
		return Result{}, fmt.Errorf("unmarshal header: %w", err)
	}
	if first.Header == nil || first.Header.Config == nil {
		return Result{}, fmt.Errorf("missing header: %w", ErrMismatch)
	}

	cfg := first.Header.Config
	s := first.Header.Initial
	res := Result{MatchID: first.Header.MatchID}

	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return res, fmt.Errorf("unmarshal tick %d: %w", s.Tick+1, err)
		}
		if l.Entry == nil {
			return res, fmt.Errorf("line after tick %d is not a tick entry: %w", s.Tick, ErrMismatch)
		}
		if l.Tick != s.Tick+1 {
			return res, fmt.Errorf("tick mismatch: want=%d got=%d: %w", s.Tick+1, l.Tick, ErrMismatch)
		}
		next, err := engine.Step(cfg, s, l.Intent, l.DT)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", l.Tick, err)
		}
		if got := FormatDigest(next.Digest()); got != l.Digest {
			return res, fmt.Errorf("digest at tick %d: got=%s want=%s: %w", l.Tick, got, l.Digest, ErrMismatch)
		}
		s = next
		res.Ticks++
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	res.Final = s
	return res, nil
}

// VerifyFile opens and verifies a recording.
func VerifyFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return Verify(f)
}
