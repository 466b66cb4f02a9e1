package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
)

const dt = 0.05

var baseMods = arena.Modifiers{HumanSpeed: 0.28, HumanCapacity: 1}

func mustMatch(t *testing.T, cfg *config.Config, teams []arena.Team, perTeam int, mods arena.Modifiers) arena.State {
	t.Helper()
	s, err := arena.NewMatch(cfg, teams, perTeam, mods)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return s
}

// randomIntents returns a reproducible intent script that changes every few ticks.
func randomIntents(seed int64, n int) []arena.Intent {
	rng := rand.New(rand.NewSource(seed))
	out := make([]arena.Intent, n)
	var cur arena.Intent
	for i := range out {
		if i%25 == 0 {
			cur = arena.Intent{
				MoveX: rng.Intn(3) - 1,
				MoveZ: rng.Intn(3) - 1,
				Steal: rng.Intn(2) == 0,
				Tag:   rng.Intn(2) == 0,
			}
		}
		out[i] = cur
	}
	return out
}

// Scenario A: five steal-and-deposit cycles end the match with the human team winning.
func TestHumanStealsToVictory(t *testing.T) {
	cfg := config.Default()
	cfg.Match.StartingReserve = 10
	cfg.Match.WinningScore = 5
	// Bases 3 apart: a point between them is inside steal range of both.
	cfg.Teams.Red = config.Vec2{X: 0, Z: 0}
	cfg.Teams.Green = config.Vec2{X: 3, Z: 0}
	cfg.Jail.Position = config.Vec2{X: 100, Z: 100}

	s := mustMatch(t, cfg, []arena.Team{arena.TeamRed, arena.TeamGreen}, 1, baseMods)
	s.Agents[0].Pos = arena.Point{X: 1.5, Z: 0}
	// Keep the only rival out of play.
	s.Agents[1].Jailed = true
	s.Agents[1].JailRemaining = 1000
	s.Agents[1].Pos = arena.PointOf(cfg.Jail.Position)

	steal := arena.Intent{Steal: true}
	for i := 1; i <= 5; i++ {
		next, err := Step(cfg, s, steal, dt)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if next.Scores[arena.TeamRed] != i {
			t.Fatalf("tick %d: RED score = %d, want %d", i, next.Scores[arena.TeamRed], i)
		}
		if next.Agents[0].Carried != 0 {
			t.Fatalf("tick %d: human still carrying %d", i, next.Agents[0].Carried)
		}
		s = next
	}

	if s.Status != arena.StatusFinished || s.Winner == nil || *s.Winner != arena.TeamRed {
		t.Fatalf("status=%v winner=%v, want finished RED", s.Status, s.Winner)
	}
	if s.Reserves[arena.TeamGreen] != 5 {
		t.Fatalf("GREEN reserve = %d, want 5", s.Reserves[arena.TeamGreen])
	}
	last := s.Events[len(s.Events)-1]
	if last.Kind != arena.EventMatchEnd || last.Team != arena.TeamRed {
		t.Fatalf("last event = %+v, want match_end for RED", last)
	}

	if _, err := Step(cfg, s, steal, dt); !errors.Is(err, ErrNotActive) {
		t.Fatalf("step after finish: %v, want ErrNotActive", err)
	}
}

// Scenario B at engine level: a fresh jail keeps its full duration for the tick it happened.
func TestTaggedHumanKeepsFullSentence(t *testing.T) {
	cfg := config.Default()
	s := mustMatch(t, cfg, []arena.Team{arena.TeamRed, arena.TeamGreen}, 1, baseMods)
	p := arena.Point{X: -15, Z: 20}
	s.Agents[0].Pos = p
	s.Agents[0].Carried = 1
	s.Reserves[arena.TeamGreen]--
	s.Agents[1].Pos = arena.Point{X: -16, Z: 20}

	next, err := Step(cfg, s, arena.Intent{}, dt)
	if err != nil {
		t.Fatal(err)
	}
	h := next.Agents[0]
	if !h.Jailed || h.Carried != 0 || h.JailRemaining != cfg.Jail.Duration {
		t.Fatalf("human = %+v", h)
	}
	if next.Reserves[arena.TeamRed] != 21 || next.Reserves[arena.TeamGreen] != 19 {
		t.Fatalf("reserves = %v, want RED 21 GREEN 19", next.Reserves)
	}
}

func TestStepDoesNotMutatePrevious(t *testing.T) {
	cfg := config.Default()
	s := mustMatch(t, cfg, arena.AllTeams[:], 4, baseMods)
	before := s.Digest()
	agents := append([]arena.Agent(nil), s.Agents...)

	if _, err := Step(cfg, s, arena.Intent{MoveX: 1, Steal: true}, dt); err != nil {
		t.Fatal(err)
	}
	if s.Digest() != before || s.Tick != 0 {
		t.Fatal("Step mutated its input snapshot")
	}
	for i := range agents {
		if agents[i] != s.Agents[i] {
			t.Fatalf("agent %d mutated", i)
		}
	}
}

func TestStepRejectsCorruptSnapshot(t *testing.T) {
	cfg := config.Default()
	s := mustMatch(t, cfg, arena.AllTeams[:], 2, baseMods)
	s.Total++ // one unit vanished from the books

	got, err := Step(cfg, s, arena.Intent{}, dt)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
	if got.Tick != s.Tick {
		t.Fatal("corrupt tick was published")
	}
}

// Conservation, capacity, jail exclusivity and monotonic scores over long runs,
// for every non-empty team combination.
func TestPropertiesHoldForEveryTeamCombination(t *testing.T) {
	cfg := config.Default()
	intents := randomIntents(7, 4000)

	for mask := 1; mask < 1<<arena.NumTeams; mask++ {
		var teams []arena.Team
		for _, tm := range arena.AllTeams {
			if mask&(1<<tm) != 0 {
				teams = append(teams, tm)
			}
		}
		t.Run(teamNames(teams), func(t *testing.T) {
			s := mustMatch(t, cfg, teams, cfg.Match.AgentsPerTeam, arena.Modifiers{HumanSpeed: 0.33, HumanCapacity: 2})
			want := cfg.Match.StartingReserve * len(teams)

			for i, in := range intents {
				next, err := Step(cfg, s, in, dt)
				if errors.Is(err, ErrNotActive) {
					break
				}
				if err != nil {
					t.Fatalf("tick %d: %v", i+1, err)
				}
				if held := next.Held(); held != want {
					t.Fatalf("tick %d: held %d, want %d", next.Tick, held, want)
				}
				for _, tm := range arena.AllTeams {
					if next.Scores[tm] < s.Scores[tm] {
						t.Fatalf("tick %d: %s score dropped", next.Tick, tm)
					}
				}
				for j := range next.Agents {
					a, b := &s.Agents[j], &next.Agents[j]
					if b.Carried > next.Capacity(j) {
						t.Fatalf("tick %d: %s over capacity", next.Tick, b.ID)
					}
					if a.Jailed && b.Jailed {
						if b.Pos != a.Pos {
							t.Fatalf("tick %d: jailed %s moved", next.Tick, b.ID)
						}
						if b.JailRemaining >= a.JailRemaining {
							t.Fatalf("tick %d: jailed %s was re-jailed", next.Tick, b.ID)
						}
					}
				}
				s = next
			}
		})
	}
}

func TestWinIsDeterministic(t *testing.T) {
	cfg := config.Default()
	cfg.Match.WinningScore = 3
	intents := randomIntents(42, 30000)

	run := func() (uint64, *arena.Team, []uint64) {
		s := mustMatch(t, cfg, arena.AllTeams[:], cfg.Match.AgentsPerTeam, baseMods)
		var digests []uint64
		for _, in := range intents {
			next, err := Step(cfg, s, in, dt)
			if err != nil {
				break
			}
			s = next
			digests = append(digests, s.Digest())
		}
		return s.Tick, s.Winner, digests
	}

	tick1, w1, d1 := run()
	tick2, w2, d2 := run()
	if tick1 != tick2 || len(d1) != len(d2) {
		t.Fatalf("runs diverged: ticks %d vs %d", tick1, tick2)
	}
	if (w1 == nil) != (w2 == nil) || (w1 != nil && *w1 != *w2) {
		t.Fatalf("winners differ: %v vs %v", w1, w2)
	}
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Fatalf("digest mismatch at tick %d", i+1)
		}
	}
}

// Scenario D through the full step: an empty-handed agent with nothing to raid stays put.
func TestIdleAgentNeverMovesOrSteals(t *testing.T) {
	cfg := config.Default()
	cfg.Match.WinningScore = 100
	s := mustMatch(t, cfg, []arena.Team{arena.TeamGreen, arena.TeamBlue}, 1, baseMods)
	s.Scores[arena.TeamBlue] = s.Reserves[arena.TeamBlue]
	s.Reserves[arena.TeamBlue] = 0
	green := s.Agents[0]

	for i := 0; i < 50; i++ {
		next, err := Step(cfg, s, arena.Intent{}, dt)
		if err != nil {
			t.Fatal(err)
		}
		s = next
	}
	if s.Agents[0].Pos != green.Pos || s.Agents[0].Carried != 0 {
		t.Fatalf("idle GREEN agent changed: %+v", s.Agents[0])
	}
}

func TestIdleAgentWalksHome(t *testing.T) {
	cfg := config.Default()
	cfg.Match.WinningScore = 100
	s := mustMatch(t, cfg, []arena.Team{arena.TeamGreen, arena.TeamBlue}, 1, baseMods)
	s.Scores[arena.TeamBlue] = s.Reserves[arena.TeamBlue]
	s.Reserves[arena.TeamBlue] = 0
	home := s.Bases[arena.TeamGreen]
	s.Agents[0].Pos = arena.Point{X: home.X + 5, Z: home.Z}

	for i := 0; i < 40; i++ {
		next, err := Step(cfg, s, arena.Intent{}, dt)
		if err != nil {
			t.Fatal(err)
		}
		s = next
	}
	if d := s.Agents[0].Pos.Dist(home); d > cfg.Movement.ArrivalEpsilon {
		t.Fatalf("idle GREEN agent is %.2f from home, want at base", d)
	}
}

func teamNames(teams []arena.Team) string {
	name := ""
	for i, tm := range teams {
		if i > 0 {
			name += "+"
		}
		name += tm.String()
	}
	return name
}
