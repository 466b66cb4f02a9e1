package pilot

import (
	"github.com/talgya/gold-arena/internal/arena"
)

// Action is what the pilot does this cycle.
type Action string

const (
	ActionNone        Action = "none"
	ActionStart       Action = "start"
	ActionAcknowledge Action = "acknowledge"
	ActionPurchase    Action = "purchase"
	ActionIntent      Action = "intent"
)

// Options tune the pilot's behavior.
type Options struct {
	AutoStart bool    // Start a match from the lobby
	Buy       bool    // Spend currency on upgrades between matches
	Deadband  float64 // Axis offsets below this are not steered
}

// Decision is the outcome of one decide step.
type Decision struct {
	Action    Action       `json:"action"`
	Intent    arena.Intent `json:"intent"`
	Upgrade   string       `json:"upgrade,omitempty"`
	Rationale string       `json:"rationale"`
}

// upgradeOrder fixes the purchase preference when several are affordable at the same price.
var upgradeOrder = []string{"speed", "capacity"}

// Decide picks the next action from an observation. It never needs the network.
func Decide(snap *Snapshot, opts Options) Decision {
	s := &snap.State
	switch s.Status {
	case arena.StatusFinished:
		return Decision{Action: ActionAcknowledge, Rationale: "match over"}
	case arena.StatusLobby:
		if opts.Buy {
			if kind, ok := cheapestAffordable(snap.Progression); ok {
				return Decision{Action: ActionPurchase, Upgrade: kind, Rationale: "currency to spend"}
			}
		}
		if opts.AutoStart {
			return Decision{Action: ActionStart, Rationale: "lobby"}
		}
		return Decision{Action: ActionNone, Rationale: "waiting in lobby"}
	}

	h := s.HumanIndex()
	if h < 0 {
		return Decision{Action: ActionNone, Rationale: "human team not playing"}
	}
	me := s.Agents[h]
	if me.Jailed {
		return Decision{Action: ActionIntent, Rationale: "jailed"}
	}

	home := s.Bases[me.Team]
	target, why := home, "returning gold"
	full := me.Carried >= s.Capacity(h)
	if !full {
		if t, ok := richestEnemy(s, me.Team); ok {
			target, why = s.Bases[t], "raiding "+t.String()
		} else if me.Carried == 0 {
			why = "nothing left to raid"
		}
	}

	return Decision{
		Action: ActionIntent,
		Intent: arena.Intent{
			MoveX: steer(target.X-me.Pos.X, opts.Deadband),
			MoveZ: steer(target.Z-me.Pos.Z, opts.Deadband),
			Steal: !full,
			Tag:   true,
		},
		Rationale: why,
	}
}

// richestEnemy returns the participating enemy with the largest reserve, first in enum order on ties.
func richestEnemy(s *arena.State, own arena.Team) (arena.Team, bool) {
	best, found := arena.Team(0), false
	for _, t := range s.Teams {
		if t == own || s.Reserves[t] == 0 {
			continue
		}
		if !found || s.Reserves[t] > s.Reserves[best] {
			best, found = t, true
		}
	}
	return best, found
}

func cheapestAffordable(p ProgressionView) (string, bool) {
	best, cost := "", 0
	for _, kind := range upgradeOrder {
		u, ok := p.Upgrades[kind]
		if !ok || !u.CanAfford {
			continue
		}
		if best == "" || u.NextCost < cost {
			best, cost = kind, u.NextCost
		}
	}
	return best, best != ""
}

func steer(d, deadband float64) int {
	switch {
	case d > deadband:
		return 1
	case d < -deadband:
		return -1
	}
	return 0
}
