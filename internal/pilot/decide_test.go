package pilot

import (
	"testing"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
)

func activeSnapshot(t *testing.T, teams ...arena.Team) *Snapshot {
	t.Helper()
	cfg := config.Default()
	cfg.Match.HumanTeam = "RED"
	s, err := arena.NewMatch(cfg, teams, 2, arena.Modifiers{HumanSpeed: 4, HumanCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	return &Snapshot{State: s}
}

func human(snap *Snapshot) *arena.Agent {
	return &snap.State.Agents[snap.State.HumanIndex()]
}

func TestDecideRaidsRichestEnemy(t *testing.T) {
	snap := activeSnapshot(t, arena.AllTeams[:]...)
	snap.State.Reserves[arena.TeamGreen] = 3
	snap.State.Reserves[arena.TeamBlue] = 9

	d := Decide(snap, Options{Deadband: 0.3})
	if d.Action != ActionIntent {
		t.Fatalf("action = %s", d.Action)
	}
	if !d.Intent.Steal || !d.Intent.Tag {
		t.Errorf("intent = %+v, want steal and tag", d.Intent)
	}
	me := human(snap)
	blue := snap.State.Bases[arena.TeamBlue]
	if want := steer(blue.X-me.Pos.X, 0.3); d.Intent.MoveX != want {
		t.Errorf("move_x = %d, want %d", d.Intent.MoveX, want)
	}
	if want := steer(blue.Z-me.Pos.Z, 0.3); d.Intent.MoveZ != want {
		t.Errorf("move_z = %d, want %d", d.Intent.MoveZ, want)
	}
	if d.Rationale != "raiding BLUE" {
		t.Errorf("rationale = %q", d.Rationale)
	}
}

func TestDecideReturnsHomeWhenFull(t *testing.T) {
	snap := activeSnapshot(t, arena.TeamRed, arena.TeamBlue)
	me := human(snap)
	me.Pos = snap.State.Bases[arena.TeamBlue]
	me.Carried = 2

	d := Decide(snap, Options{Deadband: 0.3})
	if d.Intent.Steal {
		t.Error("full agent should not ask to steal")
	}
	home := snap.State.Bases[arena.TeamRed]
	if want := steer(home.X-me.Pos.X, 0.3); d.Intent.MoveX != want {
		t.Errorf("move_x = %d, want %d", d.Intent.MoveX, want)
	}
	if d.Rationale != "returning gold" {
		t.Errorf("rationale = %q", d.Rationale)
	}
}

func TestDecideHoldsStillInsideDeadband(t *testing.T) {
	snap := activeSnapshot(t, arena.TeamRed, arena.TeamBlue)
	me := human(snap)
	target := snap.State.Bases[arena.TeamBlue]
	me.Pos = arena.Point{X: target.X + 0.1, Z: target.Z - 0.2}

	d := Decide(snap, Options{Deadband: 0.3})
	if d.Intent.MoveX != 0 || d.Intent.MoveZ != 0 {
		t.Errorf("intent = %+v, want no movement", d.Intent)
	}
}

func TestDecideJailedSendsEmptyIntent(t *testing.T) {
	snap := activeSnapshot(t, arena.AllTeams[:]...)
	human(snap).Jailed = true

	d := Decide(snap, Options{})
	if d.Action != ActionIntent || d.Intent != (arena.Intent{}) {
		t.Errorf("decision = %+v", d)
	}
}

func TestDecideWithoutHuman(t *testing.T) {
	snap := activeSnapshot(t, arena.TeamGreen, arena.TeamBlue)
	if d := Decide(snap, Options{}); d.Action != ActionNone {
		t.Errorf("action = %s, want none", d.Action)
	}
}

func TestDecideLobbyAndFinished(t *testing.T) {
	cfg := config.Default()
	lobby := &Snapshot{
		State: arena.Lobby(cfg),
		Progression: ProgressionView{
			Currency: 120,
			Upgrades: map[string]UpgradeView{
				"speed":    {Level: 2, NextCost: 150, CanAfford: false},
				"capacity": {Level: 0, NextCost: 100, CanAfford: true},
			},
		},
	}

	tests := []struct {
		name string
		opts Options
		want Action
	}{
		{"buys first", Options{Buy: true, AutoStart: true}, ActionPurchase},
		{"starts when not buying", Options{AutoStart: true}, ActionStart},
		{"waits", Options{}, ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(lobby, tt.opts)
			if d.Action != tt.want {
				t.Fatalf("action = %s, want %s", d.Action, tt.want)
			}
			if d.Action == ActionPurchase && d.Upgrade != "capacity" {
				t.Errorf("upgrade = %q, want capacity", d.Upgrade)
			}
		})
	}

	finished := &Snapshot{State: arena.Lobby(cfg)}
	finished.State.Status = arena.StatusFinished
	if d := Decide(finished, Options{}); d.Action != ActionAcknowledge {
		t.Errorf("finished action = %s", d.Action)
	}
}

func TestCheapestAffordablePrefersShopOrderOnTies(t *testing.T) {
	p := ProgressionView{Upgrades: map[string]UpgradeView{
		"speed":    {NextCost: 100, CanAfford: true},
		"capacity": {NextCost: 100, CanAfford: true},
	}}
	if kind, ok := cheapestAffordable(p); !ok || kind != "speed" {
		t.Errorf("cheapestAffordable = %q, %v", kind, ok)
	}
	if _, ok := cheapestAffordable(ProgressionView{}); ok {
		t.Error("nothing affordable should report false")
	}
}
