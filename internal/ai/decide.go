// Package ai decides where autonomous agents go each tick.
package ai

import "github.com/talgya/gold-arena/internal/arena"

// Mode names the branch of the priority list that produced a decision.
type Mode uint8

const (
	ModeJailed Mode = iota // Wait for release
	ModeDefend             // Chase an intruder near the home base
	ModeRaid               // Head for an enemy base with gold
	ModeReturn             // Carry gold home
	ModeIdle               // Nothing to do; wait at home
)

var modeNames = [...]string{"jailed", "defend", "raid", "return", "idle"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Decision is the output of one decision pass.
type Decision struct {
	Mode     Mode
	Target   arena.Point
	Chase    int        // Index of the chased intruder, -1 if none
	RaidTeam arena.Team // Only team this agent may steal from this tick
	CanRaid  bool       // RaidTeam is meaningful
}

// Decide runs the priority list for autonomous agent i:
//
//  1. jailed agents do nothing
//  2. the first free enemy (scan order) within defenseRadius of the home base is chased
//  3. an empty-handed agent raids the first enemy team (enumeration order) with gold left
//  4. a carrying agent returns home
//
// With no raid target and nothing carried the agent idles at its home base.
func Decide(s *arena.State, i int, defenseRadius float64) Decision {
	a := &s.Agents[i]
	home := s.Bases[a.Team]
	d := Decision{Mode: ModeIdle, Target: home, Chase: -1}
	if a.Jailed {
		d.Mode = ModeJailed
		d.Target = a.Pos
		return d
	}

	if a.Carried < arena.AutonomousCapacity {
		for _, t := range s.Teams {
			if t != a.Team && s.Reserves[t] > 0 {
				d.RaidTeam = t
				d.CanRaid = true
				break
			}
		}
	}

	for j := range s.Agents {
		e := &s.Agents[j]
		if e.Team == a.Team || e.Jailed {
			continue
		}
		if e.Pos.Dist(home) < defenseRadius {
			d.Mode = ModeDefend
			d.Target = e.Pos
			d.Chase = j
			return d
		}
	}

	switch {
	case a.Carried > 0:
		d.Mode = ModeReturn
		d.Target = home
	case d.CanRaid:
		d.Mode = ModeRaid
		d.Target = s.Bases[d.RaidTeam]
	}
	return d
}
