package arena

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/gold-arena/internal/config"
)

// AutonomousCapacity is the carry limit of every autonomous agent. Upgrades never apply to them.
const AutonomousCapacity = 1

// Control says who drives an agent.
type Control uint8

const (
	ControlAutonomous Control = iota
	ControlHuman
)

func (c Control) String() string {
	if c == ControlHuman {
		return "human"
	}
	return "autonomous"
}

func (c Control) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Control) UnmarshalText(b []byte) error {
	switch string(b) {
	case "human":
		*c = ControlHuman
	case "autonomous":
		*c = ControlAutonomous
	default:
		return fmt.Errorf("unknown control %q", b)
	}
	return nil
}

// Agent is one participant of a match.
type Agent struct {
	ID            string  `json:"id"`
	Team          Team    `json:"team"`
	Control       Control `json:"control"`
	Pos           Point   `json:"position"`
	Facing        float64 `json:"facing"`  // Radians, atan2(dx, dz)
	Carried       int     `json:"carried"` // Gold currently held
	Jailed        bool    `json:"jailed"`
	JailRemaining float64 `json:"jail_remaining"` // Seconds until release
}

// IsHuman returns true for the human-controlled agent.
func (a *Agent) IsHuman() bool { return a.Control == ControlHuman }

// Status is the match state machine position.
type Status uint8

const (
	StatusLobby Status = iota
	StatusActive
	StatusFinished
)

var statusNames = [...]string{"lobby", "active", "finished"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Modifiers are the progression effects frozen into a match at start.
type Modifiers struct {
	HumanSpeed    float64 `json:"human_speed"`
	HumanCapacity int     `json:"human_capacity"`
}

// State is one immutable snapshot of the arena. Callers never mutate a published State;
// the engine derives the next one from a Clone.
type State struct {
	MatchID  string          `json:"match_id,omitempty"`
	Tick     uint64          `json:"tick"`
	Status   Status          `json:"status"`
	Winner   *Team           `json:"winner,omitempty"`
	Teams    []Team          `json:"teams"` // Participants, enumeration order
	Agents   []Agent         `json:"agents"`
	Reserves [NumTeams]int   `json:"reserves"`
	Scores   [NumTeams]int   `json:"scores"`
	Bases    [NumTeams]Point `json:"bases"`
	Jail     Point           `json:"jail"`
	Total    int             `json:"total_gold"` // Conserved amount for this match
	Mods     Modifiers       `json:"modifiers"`
	Events   []Event         `json:"events"` // Committed during the tick that produced this snapshot
}

// Lobby returns the idle snapshot shown between matches.
func Lobby(cfg *config.Config) State {
	return State{
		Status: StatusLobby,
		Bases:  BasesFrom(cfg),
		Jail:   PointOf(cfg.Jail.Position),
	}
}

// NewMatch seeds the first snapshot of a match. Teams may be any non-empty subset; duplicates
// are ignored and order is normalized to the enumeration. The first agent of the configured
// human team (when it participates) is human-controlled.
func NewMatch(cfg *config.Config, teams []Team, agentsPerTeam int, mods Modifiers) (State, error) {
	if agentsPerTeam <= 0 {
		return State{}, fmt.Errorf("agents per team must be > 0, got %d", agentsPerTeam)
	}
	var present [NumTeams]bool
	for _, t := range teams {
		if !t.Valid() {
			return State{}, fmt.Errorf("invalid team %d", uint8(t))
		}
		present[t] = true
	}

	humanTeam, humanErr := ParseTeam(cfg.Match.HumanTeam)

	s := Lobby(cfg)
	s.MatchID = uuid.NewString()
	s.Status = StatusActive
	s.Mods = mods
	for _, t := range AllTeams {
		if !present[t] {
			continue
		}
		s.Teams = append(s.Teams, t)
		s.Reserves[t] = cfg.Match.StartingReserve
		s.Total += cfg.Match.StartingReserve
		for i := 0; i < agentsPerTeam; i++ {
			control := ControlAutonomous
			if humanErr == nil && t == humanTeam && i == 0 {
				control = ControlHuman
			}
			s.Agents = append(s.Agents, Agent{
				ID:      fmt.Sprintf("%s-%d", t, i),
				Team:    t,
				Control: control,
				Pos:     s.Bases[t],
			})
		}
	}
	if len(s.Teams) == 0 {
		return State{}, errors.New("match needs at least one team")
	}
	return s, nil
}

// Clone returns a deep copy that shares no memory with s.
func (s *State) Clone() State {
	c := *s
	c.Teams = slices.Clone(s.Teams)
	c.Agents = slices.Clone(s.Agents)
	c.Events = slices.Clone(s.Events)
	if s.Winner != nil {
		w := *s.Winner
		c.Winner = &w
	}
	return c
}

// HumanIndex returns the index of the human agent, or -1.
func (s *State) HumanIndex() int {
	for i := range s.Agents {
		if s.Agents[i].IsHuman() {
			return i
		}
	}
	return -1
}

// Participates reports whether t plays in this match.
func (s *State) Participates(t Team) bool {
	return slices.Contains(s.Teams, t)
}

// Capacity returns the carry limit of agent i.
func (s *State) Capacity(i int) int {
	if s.Agents[i].IsHuman() {
		return s.Mods.HumanCapacity
	}
	return AutonomousCapacity
}

// Held returns reserves + carried + scores. Equal to Total in every valid snapshot.
func (s *State) Held() int {
	n := 0
	for _, t := range AllTeams {
		n += s.Reserves[t] + s.Scores[t]
	}
	for i := range s.Agents {
		n += s.Agents[i].Carried
	}
	return n
}

// ErrInvariant marks a snapshot that breaks a model invariant. It is a programming fault.
var ErrInvariant = errors.New("arena invariant violated")

// Validate checks conservation, non-negative reserves and capacity bounds.
func (s *State) Validate() error {
	for _, t := range AllTeams {
		if s.Reserves[t] < 0 {
			return fmt.Errorf("%w: %s reserve is %d", ErrInvariant, t, s.Reserves[t])
		}
	}
	for i := range s.Agents {
		a := &s.Agents[i]
		if a.Carried < 0 || a.Carried > s.Capacity(i) {
			return fmt.Errorf("%w: %s carries %d (capacity %d)", ErrInvariant, a.ID, a.Carried, s.Capacity(i))
		}
		if a.Jailed && a.Carried != 0 {
			return fmt.Errorf("%w: jailed %s carries %d", ErrInvariant, a.ID, a.Carried)
		}
	}
	if held := s.Held(); held != s.Total {
		return fmt.Errorf("%w: %d gold held, %d expected", ErrInvariant, held, s.Total)
	}
	return nil
}

// Digest is a stable hash of the simulated fields, used to compare replays.
// MatchID and events are excluded.
func (s *State) Digest() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	putU := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putF := func(f float64) { putU(math.Float64bits(f)) }

	putU(s.Tick)
	putU(uint64(s.Status))
	if s.Winner != nil {
		putU(uint64(*s.Winner) + 1)
	} else {
		putU(0)
	}
	for _, t := range AllTeams {
		putU(uint64(s.Reserves[t]))
		putU(uint64(s.Scores[t]))
	}
	for i := range s.Agents {
		a := &s.Agents[i]
		h.Write([]byte(a.ID))
		putF(a.Pos.X)
		putF(a.Pos.Z)
		putF(a.Facing)
		putU(uint64(a.Carried))
		putF(a.JailRemaining)
		if a.Jailed {
			putU(1)
		} else {
			putU(0)
		}
	}
	return h.Sum64()
}
