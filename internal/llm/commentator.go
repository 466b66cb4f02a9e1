package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
	"github.com/talgya/gold-arena/internal/entropy"
)

// Line is one piece of commentary ready for display.
type Line struct {
	Tick  uint64    `json:"tick"`
	Event string    `json:"event"`
	Text  string    `json:"text"`
	Popup string    `json:"popup"`
	At    time.Time `json:"at"`
}

type cue struct {
	tick  uint64
	event string
	popup string // Empty = random phrase
}

// Commentator turns committed events into commentary on its own goroutine.
// Notify never blocks: cues beyond the queue size are dropped.
type Commentator struct {
	narrator    Narrator
	src         entropy.Source
	stealChance float64
	timeout     time.Duration
	queue       chan cue

	mu     sync.RWMutex
	latest Line

	// OnLine runs on the worker goroutine for every finished line.
	OnLine func(Line)
}

// NewCommentator creates a commentator. A nil narrator means canned phrases only.
// A nil src draws from crypto/rand.
func NewCommentator(n Narrator, cfg config.CommentaryConfig, src entropy.Source) *Commentator {
	size := cfg.QueueSize
	if size <= 0 {
		size = 32
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Commentator{
		narrator:    n,
		src:         src,
		stealChance: cfg.AutonomousStealChance,
		timeout:     timeout,
		queue:       make(chan cue, size),
		latest:      Line{Text: Welcome, At: time.Now()},
	}
}

// Latest returns the most recent line.
func (c *Commentator) Latest() Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Notify queues commentary for the events worth announcing.
func (c *Commentator) Notify(events []arena.Event) {
	for _, ev := range events {
		cu, ok := c.cueFor(ev)
		if !ok {
			continue
		}
		select {
		case c.queue <- cu:
		default:
			slog.Debug("commentary queue full, dropping", "event", cu.event)
		}
	}
}

// cueFor decides whether an event gets commentary and with which popup.
func (c *Commentator) cueFor(ev arena.Event) (cue, bool) {
	cu := cue{tick: ev.Tick}
	switch ev.Kind {
	case arena.EventSteal:
		if ev.Human {
			cu.event = "Stealing gold! " + ev.Description
			cu.popup = "67"
			return cu, true
		}
		if !entropy.Chance(c.src, c.stealChance) {
			return cue{}, false
		}
		cu.event = fmt.Sprintf("%s pirates raided %s! %s", ev.Team, ev.From, ev.Description)
	case arena.EventTag:
		if !ev.Human {
			return cue{}, false
		}
		cu.event = "You tagged an enemy! L BOZO!"
	case arena.EventUpgrade:
		cu.event = strings.ToUpper(ev.Description)
		cu.popup = "W PROGRESSION"
	case arena.EventMatchStart:
		cu.event = "The battle for the gold begins!"
	case arena.EventMatchEnd:
		cu.event = fmt.Sprintf("%s crew wins the match with %d gold!", ev.Team, ev.Amount)
	default:
		return cue{}, false
	}
	return cu, true
}

// Run processes queued cues until ctx is done.
func (c *Commentator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cu := <-c.queue:
			c.speak(ctx, cu)
		}
	}
}

func (c *Commentator) speak(ctx context.Context, cu cue) {
	text := c.narrate(ctx, cu.event)
	popup := cu.popup
	if popup == "" {
		popup = Phrases[entropy.Pick(c.src, len(Phrases))]
	}
	line := Line{Tick: cu.tick, Event: cu.event, Text: text, Popup: popup, At: time.Now()}

	c.mu.Lock()
	c.latest = line
	c.mu.Unlock()

	if c.OnLine != nil {
		c.OnLine(line)
	}
}

func (c *Commentator) narrate(ctx context.Context, event string) string {
	if c.narrator == nil {
		return Phrases[entropy.Pick(c.src, len(Phrases))]
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.narrator.Commentary(ctx, event)
	if err != nil {
		slog.Warn("commentary failed", "event", event, "error", err)
		return FallbackError
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackEmpty
	}
	return text
}
