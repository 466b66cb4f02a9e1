package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
	"github.com/talgya/gold-arena/internal/entropy"
)

type fakeNarrator struct {
	reply string
	err   error
	seen  chan string
}

func (f *fakeNarrator) Commentary(_ context.Context, event string) (string, error) {
	if f.seen != nil {
		f.seen <- event
	}
	return f.reply, f.err
}

type fixedSource float64

func (f fixedSource) Float() float64 { return float64(f) }

func newTestCommentator(n Narrator, chance float64, src entropy.Source) (*Commentator, chan Line) {
	cfg := config.Default().Commentary
	cfg.AutonomousStealChance = chance
	c := NewCommentator(n, cfg, src)
	lines := make(chan Line, 16)
	c.OnLine = func(l Line) { lines <- l }
	return c, lines
}

func runCommentator(t *testing.T, c *Commentator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)
}

func nextLine(t *testing.T, lines <-chan Line) Line {
	t.Helper()
	select {
	case l := <-lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("no commentary line")
		return Line{}
	}
}

func TestHumanStealForcesPopup(t *testing.T) {
	n := &fakeNarrator{reply: "  Fanum tax on the green crew, matey!  "}
	c, lines := newTestCommentator(n, 0, fixedSource(0.5))
	runCommentator(t, c)

	c.Notify([]arena.Event{{Tick: 7, Kind: arena.EventSteal, Human: true, Description: "RED-0 stole gold from GREEN (1/1)"}})

	l := nextLine(t, lines)
	if l.Popup != "67" || l.Text != "Fanum tax on the green crew, matey!" || l.Tick != 7 {
		t.Fatalf("line = %+v", l)
	}
	if c.Latest().Text != l.Text {
		t.Fatalf("Latest = %+v", c.Latest())
	}
}

func TestFallbacks(t *testing.T) {
	tests := []struct {
		name string
		n    *fakeNarrator
		want string
	}{
		{"error", &fakeNarrator{err: errors.New("boom")}, FallbackError},
		{"empty", &fakeNarrator{reply: "   "}, FallbackEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, lines := newTestCommentator(tt.n, 0, fixedSource(0))
			runCommentator(t, c)
			c.Notify([]arena.Event{{Kind: arena.EventUpgrade, Human: true, Description: "upgrade bought: speed level 1"}})
			l := nextLine(t, lines)
			if l.Text != tt.want || l.Popup != "W PROGRESSION" {
				t.Fatalf("line = %+v", l)
			}
			if l.Event != "UPGRADE BOUGHT: SPEED LEVEL 1" {
				t.Fatalf("event = %q", l.Event)
			}
		})
	}
}

func TestNoNarratorUsesPhrases(t *testing.T) {
	c, lines := newTestCommentator(nil, 0, fixedSource(0.99))
	if c.Latest().Text != Welcome {
		t.Fatalf("initial line = %+v", c.Latest())
	}
	runCommentator(t, c)
	c.Notify([]arena.Event{{Kind: arena.EventMatchStart}})
	l := nextLine(t, lines)
	if !slices.Contains(Phrases, l.Text) || l.Popup != Phrases[len(Phrases)-1] {
		t.Fatalf("line = %+v", l)
	}
}

func TestAutonomousStealsAreSampled(t *testing.T) {
	ai := arena.Event{Kind: arena.EventSteal, Team: arena.TeamGreen, From: arena.TeamBlue}

	c, _ := newTestCommentator(nil, 0.1, fixedSource(0.5))
	if _, ok := c.cueFor(ai); ok {
		t.Fatal("draw above chance should stay silent")
	}
	c, _ = newTestCommentator(nil, 0.1, fixedSource(0.01))
	if _, ok := c.cueFor(ai); !ok {
		t.Fatal("draw below chance should announce")
	}

	for _, kind := range []arena.EventKind{arena.EventDeposit, arena.EventRelease} {
		if _, ok := c.cueFor(arena.Event{Kind: kind, Human: true}); ok {
			t.Fatalf("%s should not be announced", kind)
		}
	}
	if _, ok := c.cueFor(arena.Event{Kind: arena.EventTag}); ok {
		t.Fatal("autonomous tags are not announced")
	}
}

func TestNotifyNeverBlocks(t *testing.T) {
	cfg := config.Default().Commentary
	cfg.QueueSize = 1
	c := NewCommentator(nil, cfg, fixedSource(0))

	done := make(chan struct{})
	go func() {
		events := make([]arena.Event, 50)
		for i := range events {
			events[i] = arena.Event{Kind: arena.EventMatchStart}
		}
		c.Notify(events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no worker running")
	}
}

func TestHaikuNarrator(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"text":"Gyatt, that gold!"}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	n := HaikuNarrator{Client: NewClient("test-key", 2, time.Second).WithURL(srv.URL)}
	text, err := n.Commentary(context.Background(), "RED-0 stole gold")
	if err != nil || text != "Gyatt, that gold!" {
		t.Fatalf("Commentary = %q, %v", text, err)
	}
	if got.MaxTokens != 50 || got.Model != model || len(got.Messages) != 1 {
		t.Fatalf("request = %+v", got)
	}

	n.Commentary(context.Background(), "again")
	if _, err := n.Commentary(context.Background(), "third"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third call: %v, want rate limited", err)
	}

	var disabled HaikuNarrator
	if _, err := disabled.Commentary(context.Background(), "x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled: %v", err)
	}
	if NewClient("", 1, time.Second) != nil {
		t.Fatal("empty key should yield nil client")
	}
}
