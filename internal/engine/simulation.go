package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
	"github.com/talgya/gold-arena/internal/economy"
)

// ErrInvalidTransition is returned for an operation the current match status does not accept.
var ErrInvalidTransition = errors.New("operation not allowed in current match status")

// maxHistory bounds the cross-tick event history kept for the API.
const maxHistory = 1000

// Simulation owns the current snapshot and the progression and applies the match state machine:
//
//	Lobby --StartMatch--> Active --win--> Finished --Acknowledge--> Lobby
//
// Snapshots handed out are never mutated afterwards, so readers need no further locking.
type Simulation struct {
	cfg *config.Config

	// transMu serializes state transitions together with their hooks, so a tick never
	// runs before OnMatchStart has returned. mu guards the fields below it.
	transMu sync.Mutex

	mu          sync.RWMutex
	state       arena.State
	progression economy.Progression
	intent      arena.Intent
	history     []arena.Event

	subMu   sync.Mutex
	subs    map[int]chan arena.State
	nextSub int

	// Callbacks, populated during setup. They run after the new snapshot is committed,
	// one transition at a time, and must not block for long. They may read the
	// simulation but must not call StartMatch, Tick, Acknowledge or Purchase.
	OnMatchStart func(s arena.State)
	OnStep       func(in arena.Intent, dt float64, next arena.State)
	OnEvents     func(events []arena.Event)
	OnMatchEnd   func(final arena.State, p economy.Progression)
}

// NewSimulation creates a simulation in the Lobby with restored progression.
func NewSimulation(cfg *config.Config, p economy.Progression) *Simulation {
	return &Simulation{
		cfg:         cfg,
		state:       arena.Lobby(cfg),
		progression: p,
		subs:        make(map[int]chan arena.State),
	}
}

// Config returns the configuration the simulation runs with.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Snapshot returns the latest published snapshot.
func (s *Simulation) Snapshot() arena.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns the current match status.
func (s *Simulation) Status() arena.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// Progression returns the persistent progression.
func (s *Simulation) Progression() economy.Progression {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progression
}

// Intent returns the intent that the next tick will consume.
func (s *Simulation) Intent() arena.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intent
}

// SubmitIntent replaces the held human intent. It stays in effect until replaced,
// like a held key. Values are clamped.
func (s *Simulation) SubmitIntent(in arena.Intent) {
	s.mu.Lock()
	s.intent = in.Clamped()
	s.mu.Unlock()
}

// StartMatch seeds a fresh match from the config and progression. With no teams given,
// every team plays.
func (s *Simulation) StartMatch(teams ...arena.Team) (arena.State, error) {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	if len(teams) == 0 {
		teams = arena.AllTeams[:]
	}

	s.mu.Lock()
	if s.state.Status != arena.StatusLobby {
		status := s.state.Status
		s.mu.Unlock()
		return arena.State{}, fmt.Errorf("start match while %s: %w", status, ErrInvalidTransition)
	}
	mods := economy.ModifiersFor(s.cfg, s.progression)
	next, err := arena.NewMatch(s.cfg, teams, s.cfg.Match.AgentsPerTeam, mods)
	if err != nil {
		s.mu.Unlock()
		return arena.State{}, fmt.Errorf("new match: %w", err)
	}
	next.Events = []arena.Event{{
		Kind:        arena.EventMatchStart,
		Description: fmt.Sprintf("match %s started with %d teams", next.MatchID, len(next.Teams)),
	}}
	s.state = next
	s.intent = arena.Intent{}
	s.appendHistoryLocked(next.Events)
	s.mu.Unlock()

	slog.Info("match started",
		"match_id", next.MatchID,
		"teams", len(next.Teams),
		"agents", len(next.Agents),
		"human_speed", next.Mods.HumanSpeed,
		"human_capacity", next.Mods.HumanCapacity,
	)

	if s.OnMatchStart != nil {
		s.OnMatchStart(next)
	}
	s.publish(next)
	return next, nil
}

// Tick advances an active match by dt seconds using the held intent.
// On an invariant fault the previous snapshot stays published and the error is returned.
func (s *Simulation) Tick(dt float64) (arena.State, error) {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	s.mu.Lock()
	prev := s.state
	in := s.intent
	next, err := Step(s.cfg, prev, in, dt)
	if err != nil {
		s.mu.Unlock()
		if !errors.Is(err, ErrNotActive) {
			slog.Error("tick rejected", "match_id", prev.MatchID, "tick", prev.Tick+1, "error", err)
		}
		return prev, err
	}

	finished := next.Status == arena.StatusFinished
	var award economy.Progression
	if finished {
		before := s.progression.Currency
		s.progression = economy.AwardForWin(s.cfg, *next.Winner, s.progression)
		award = s.progression
		slog.Info("match finished",
			"match_id", next.MatchID,
			"winner", next.Winner.String(),
			"tick", next.Tick,
			"scores", fmt.Sprint(next.Scores),
			"awarded", humanize.Comma(int64(award.Currency-before)),
			"balance", humanize.Comma(int64(award.Currency)),
		)
	}
	s.state = next
	s.appendHistoryLocked(next.Events)
	s.mu.Unlock()

	if s.OnStep != nil {
		s.OnStep(in, dt, next)
	}
	if len(next.Events) > 0 && s.OnEvents != nil {
		s.OnEvents(next.Events)
	}
	if finished && s.OnMatchEnd != nil {
		s.OnMatchEnd(next, award)
	}
	s.publish(next)
	return next, nil
}

// Acknowledge returns a finished match to the lobby.
func (s *Simulation) Acknowledge() error {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	s.mu.Lock()
	if s.state.Status != arena.StatusFinished {
		status := s.state.Status
		s.mu.Unlock()
		return fmt.Errorf("acknowledge while %s: %w", status, ErrInvalidTransition)
	}
	lobby := arena.Lobby(s.cfg)
	s.state = lobby
	s.intent = arena.Intent{}
	s.mu.Unlock()

	s.publish(lobby)
	return nil
}

// Purchase buys an upgrade level. Only allowed in the lobby, so upgrades never change mid-match.
// An economy.ErrInsufficientFunds refusal leaves progression unchanged.
func (s *Simulation) Purchase(kind economy.Upgrade) (economy.Progression, error) {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	s.mu.Lock()
	if s.state.Status != arena.StatusLobby {
		status := s.state.Status
		p := s.progression
		s.mu.Unlock()
		return p, fmt.Errorf("purchase while %s: %w", status, ErrInvalidTransition)
	}
	next, err := economy.Purchase(s.cfg, kind, s.progression)
	if err != nil {
		s.mu.Unlock()
		slog.Info("purchase refused", "upgrade", kind, "balance", next.Currency, "reason", err)
		return next, err
	}
	s.progression = next
	level, _ := next.Level(kind)
	ev := arena.Event{
		Kind:        arena.EventUpgrade,
		Human:       true,
		Amount:      level,
		Description: fmt.Sprintf("upgrade bought: %s level %d", kind, level),
	}
	s.appendHistoryLocked([]arena.Event{ev})
	s.mu.Unlock()

	slog.Info("upgrade purchased", "upgrade", kind, "level", level, "balance", humanize.Comma(int64(next.Currency)))
	if s.OnEvents != nil {
		s.OnEvents([]arena.Event{ev})
	}
	return next, nil
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (s *Simulation) RecentEvents(n int) []arena.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.history) - n
	if start < 0 || n <= 0 {
		start = 0
	}
	out := make([]arena.Event, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

func (s *Simulation) appendHistoryLocked(events []arena.Event) {
	s.history = append(s.history, events...)
	// Trim old events to prevent unbounded growth.
	if len(s.history) > maxHistory {
		s.history = append([]arena.Event(nil), s.history[len(s.history)-maxHistory:]...)
	}
}

// Subscribe registers a listener for published snapshots. Slow listeners miss
// intermediate snapshots rather than stalling the tick.
func (s *Simulation) Subscribe() (int, <-chan arena.State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	ch := make(chan arena.State, 4)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) publish(st arena.State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
