package interaction

import (
	"testing"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
)

// newState builds a three-team match with two agents per team.
// Indices: 0 RED-0 (human), 1 RED-1, 2 GREEN-0, 3 GREEN-1, 4 BLUE-0, 5 BLUE-1.
func newState(t *testing.T, capacity int) (*arena.State, Rules) {
	t.Helper()
	cfg := config.Default()
	s, err := arena.NewMatch(cfg, arena.AllTeams[:], 2, arena.Modifiers{HumanSpeed: 0.28, HumanCapacity: capacity})
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return &s, RulesFrom(cfg)
}

func near(p arena.Point) arena.Point {
	return arena.Point{X: p.X + 0.5, Z: p.Z}
}

func TestStealTakesOneUnitInRange(t *testing.T) {
	s, r := newState(t, 1)
	s.Agents[0].Pos = near(s.Bases[arena.TeamGreen])

	if !Steal(s, 0, arena.TeamGreen, r) {
		t.Fatal("expected steal")
	}
	if s.Agents[0].Carried != 1 || s.Reserves[arena.TeamGreen] != 19 {
		t.Fatalf("carried=%d reserve=%d", s.Agents[0].Carried, s.Reserves[arena.TeamGreen])
	}
	if len(s.Events) != 1 || s.Events[0].Kind != arena.EventSteal || s.Events[0].From != arena.TeamGreen {
		t.Fatalf("events = %+v", s.Events)
	}
	// At capacity now.
	if Steal(s, 0, arena.TeamGreen, r) {
		t.Fatal("steal beyond capacity")
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestStealRefusals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *arena.State)
		from  arena.Team
	}{
		{"out of range", func(s *arena.State) { s.Agents[0].Pos = arena.Point{} }, arena.TeamGreen},
		{"exactly at threshold", func(s *arena.State) {
			b := s.Bases[arena.TeamGreen]
			s.Agents[0].Pos = arena.Point{X: b.X + 2.0, Z: b.Z}
		}, arena.TeamGreen},
		{"own base", func(s *arena.State) {}, arena.TeamRed},
		{"empty reserve", func(s *arena.State) {
			s.Agents[0].Pos = near(s.Bases[arena.TeamGreen])
			s.Scores[arena.TeamGreen] = s.Reserves[arena.TeamGreen]
			s.Reserves[arena.TeamGreen] = 0
		}, arena.TeamGreen},
		{"jailed", func(s *arena.State) {
			s.Agents[0].Pos = near(s.Bases[arena.TeamGreen])
			s.Agents[0].Jailed = true
		}, arena.TeamGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r := newState(t, 1)
			tt.setup(s)
			if Steal(s, 0, tt.from, r) {
				t.Fatal("steal should be refused")
			}
			if s.Agents[0].Carried != 0 {
				t.Fatalf("carried = %d", s.Agents[0].Carried)
			}
		})
	}
}

func TestStealAllRespectsCapacityAcrossBases(t *testing.T) {
	s, r := newState(t, 1)
	// Pile every base on one spot so two enemy bases are in range at once.
	s.Bases[arena.TeamGreen] = arena.Point{X: 50, Z: 50}
	s.Bases[arena.TeamBlue] = arena.Point{X: 50, Z: 50}
	s.Agents[0].Pos = arena.Point{X: 50, Z: 50}

	if n := StealAll(s, 0, r); n != 1 {
		t.Fatalf("stole %d units with capacity 1", n)
	}

	s2, _ := newState(t, 2)
	s2.Bases = s.Bases
	s2.Agents[0].Pos = arena.Point{X: 50, Z: 50}
	if n := StealAll(s2, 0, r); n != 2 {
		t.Fatalf("stole %d units with capacity 2, want one per base", n)
	}
	if s2.Reserves[arena.TeamGreen] != 19 || s2.Reserves[arena.TeamBlue] != 19 {
		t.Fatalf("reserves = %v", s2.Reserves)
	}
}

// Scenario B: a carrying human is tagged; the gold lands in the human's own team reserve.
func TestTagLaundersGoldIntoVictimTeam(t *testing.T) {
	s, r := newState(t, 1)
	p := arena.Point{X: 5, Z: 5}
	s.Agents[0].Pos = p
	s.Agents[0].Carried = 1
	s.Reserves[arena.TeamGreen]-- // the human stole it from GREEN
	s.Agents[4].Pos = arena.Point{X: 6, Z: 5}

	victims := Tag(s, 4, r)
	if len(victims) != 1 || victims[0] != 0 {
		t.Fatalf("victims = %v, want [0]", victims)
	}
	h := s.Agents[0]
	if h.Carried != 0 || !h.Jailed || h.JailRemaining != r.JailDuration || h.Pos != r.JailPos {
		t.Fatalf("human after tag = %+v", h)
	}
	if s.Reserves[arena.TeamRed] != 21 {
		t.Fatalf("RED reserve = %d, want 21", s.Reserves[arena.TeamRed])
	}
	if s.Reserves[arena.TeamGreen] != 19 {
		t.Fatalf("GREEN reserve = %d, want 19 (not refunded)", s.Reserves[arena.TeamGreen])
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestTagIgnoresJailedAndFriendly(t *testing.T) {
	s, r := newState(t, 1)
	for i := range s.Agents {
		s.Agents[i].Pos = arena.Point{X: 1, Z: 1}
	}
	s.Agents[2].Jailed = true
	s.Agents[2].JailRemaining = 3

	victims := Tag(s, 0, r)
	// RED-1 is friendly, GREEN-0 already jailed.
	want := []int{3, 4, 5}
	if len(victims) != len(want) {
		t.Fatalf("victims = %v, want %v", victims, want)
	}
	for k, v := range want {
		if victims[k] != v {
			t.Fatalf("victims = %v, want %v", victims, want)
		}
	}
	if s.Agents[2].JailRemaining != 3 {
		t.Fatal("already-jailed agent was re-jailed")
	}
	if s.Agents[1].Jailed {
		t.Fatal("teammate was tagged")
	}
}

func TestJailedTaggerDoesNothing(t *testing.T) {
	s, r := newState(t, 1)
	s.Agents[0].Jailed = true
	s.Agents[2].Pos = s.Agents[0].Pos
	if v := Tag(s, 0, r); v != nil {
		t.Fatalf("jailed tagger jailed %v", v)
	}
}

func TestDepositScoresAtOwnBase(t *testing.T) {
	s, r := newState(t, 3)
	s.Agents[0].Carried = 3
	s.Reserves[arena.TeamBlue] -= 3

	if !Deposit(s, 0, r) {
		t.Fatal("expected deposit at own base")
	}
	if s.Scores[arena.TeamRed] != 3 || s.Agents[0].Carried != 0 {
		t.Fatalf("score=%d carried=%d", s.Scores[arena.TeamRed], s.Agents[0].Carried)
	}
	if Deposit(s, 0, r) {
		t.Fatal("empty-handed deposit")
	}

	s.Agents[0].Carried = 1
	s.Reserves[arena.TeamBlue]--
	s.Agents[0].Pos = s.Bases[arena.TeamGreen]
	if Deposit(s, 0, r) {
		t.Fatal("deposit away from own base")
	}
}

func TestTickJailCountsDownAndReleases(t *testing.T) {
	s, r := newState(t, 1)
	s.Agents[2].Jailed = true
	s.Agents[2].JailRemaining = 0.1
	s.Agents[2].Pos = r.JailPos
	s.Agents[3].Jailed = true
	s.Agents[3].JailRemaining = r.JailDuration

	released := TickJail(s, 0.05, map[int]bool{3: true})
	if len(released) != 0 {
		t.Fatalf("released too early: %v", released)
	}
	if s.Agents[3].JailRemaining != r.JailDuration {
		t.Fatal("fresh jail was counted down")
	}

	released = TickJail(s, 0.05, nil)
	if len(released) != 1 || released[0] != 2 {
		t.Fatalf("released = %v, want [2]", released)
	}
	a := s.Agents[2]
	if a.Jailed || a.Pos != s.Bases[arena.TeamGreen] || a.Carried != 0 {
		t.Fatalf("released agent = %+v", a)
	}
}
