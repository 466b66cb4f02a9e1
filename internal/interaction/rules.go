// Package interaction resolves the spatial rules of a match: steal, tag, deposit and jail release.
// Each rule commits to the working snapshot immediately, so later checks in the same tick observe it.
package interaction

import (
	"fmt"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
)

// Rules holds the thresholds the resolver needs.
type Rules struct {
	TagDistance   float64
	StealDistance float64 // Also the deposit radius around an own base
	JailDuration  float64
	JailPos       arena.Point
}

// RulesFrom extracts Rules from the config.
func RulesFrom(cfg *config.Config) Rules {
	return Rules{
		TagDistance:   cfg.Interaction.TagDistance,
		StealDistance: cfg.Interaction.StealDistance,
		JailDuration:  cfg.Jail.Duration,
		JailPos:       arena.PointOf(cfg.Jail.Position),
	}
}

// Steal moves one unit from team from's reserve into agent i's carried amount when the agent
// is free, below capacity and within steal distance of that enemy base.
func Steal(s *arena.State, i int, from arena.Team, r Rules) bool {
	a := &s.Agents[i]
	if a.Jailed || from == a.Team || !s.Participates(from) {
		return false
	}
	if s.Reserves[from] <= 0 || a.Carried >= s.Capacity(i) {
		return false
	}
	if a.Pos.Dist(s.Bases[from]) >= r.StealDistance {
		return false
	}

	a.Carried++
	s.Reserves[from]--
	s.Events = append(s.Events, arena.Event{
		Tick:        s.Tick,
		Kind:        arena.EventSteal,
		Agent:       a.ID,
		Team:        a.Team,
		From:        from,
		Amount:      1,
		Human:       a.IsHuman(),
		Description: fmt.Sprintf("%s stole gold from %s (%d/%d)", a.ID, from, a.Carried, s.Capacity(i)),
	})
	return true
}

// StealAll runs Steal against every enemy base independently, in enumeration order.
// Only the human agent steals this way. Returns the number of units taken.
func StealAll(s *arena.State, i int, r Rules) int {
	n := 0
	for _, t := range s.Teams {
		if Steal(s, i, t, r) {
			n++
		}
	}
	return n
}

// Tag jails every free enemy within tag distance of agent i and returns their indices.
// A victim's carried gold goes into the victim's own team reserve, not back to the robbed team.
func Tag(s *arena.State, i int, r Rules) []int {
	tagger := &s.Agents[i]
	if tagger.Jailed {
		return nil
	}

	var victims []int
	for j := range s.Agents {
		v := &s.Agents[j]
		if v.Team == tagger.Team || v.Jailed {
			continue
		}
		if tagger.Pos.Dist(v.Pos) >= r.TagDistance {
			continue
		}

		returned := v.Carried
		v.Jailed = true
		v.JailRemaining = r.JailDuration
		v.Pos = r.JailPos
		if returned > 0 {
			s.Reserves[v.Team] += returned
			v.Carried = 0
		}
		victims = append(victims, j)

		s.Events = append(s.Events, arena.Event{
			Tick:        s.Tick,
			Kind:        arena.EventTag,
			Agent:       tagger.ID,
			Team:        tagger.Team,
			Other:       v.ID,
			From:        v.Team,
			Amount:      returned,
			Human:       tagger.IsHuman(),
			Description: fmt.Sprintf("%s tagged %s", tagger.ID, v.ID),
		})
	}
	return victims
}

// Deposit converts agent i's carried gold into its team's score when it is at its own base.
func Deposit(s *arena.State, i int, r Rules) bool {
	a := &s.Agents[i]
	if a.Jailed || a.Carried == 0 {
		return false
	}
	if a.Pos.Dist(s.Bases[a.Team]) >= r.StealDistance {
		return false
	}

	amount := a.Carried
	s.Scores[a.Team] += amount
	a.Carried = 0
	s.Events = append(s.Events, arena.Event{
		Tick:        s.Tick,
		Kind:        arena.EventDeposit,
		Agent:       a.ID,
		Team:        a.Team,
		From:        a.Team,
		Amount:      amount,
		Human:       a.IsHuman(),
		Description: fmt.Sprintf("%s banked %d gold for %s", a.ID, amount, a.Team),
	})
	return true
}

// TickJail counts down every jailed agent by dt and releases those that reach zero,
// teleporting them home empty-handed. Agents in fresh were jailed this tick and keep
// their full sentence. Returns the released indices.
func TickJail(s *arena.State, dt float64, fresh map[int]bool) []int {
	var released []int
	for i := range s.Agents {
		a := &s.Agents[i]
		if !a.Jailed || fresh[i] {
			continue
		}
		a.JailRemaining -= dt
		if a.JailRemaining > 0 {
			continue
		}
		a.Jailed = false
		a.JailRemaining = 0
		a.Carried = 0
		a.Pos = s.Bases[a.Team]
		released = append(released, i)
		s.Events = append(s.Events, arena.Event{
			Tick:        s.Tick,
			Kind:        arena.EventRelease,
			Agent:       a.ID,
			Team:        a.Team,
			From:        a.Team,
			Human:       a.IsHuman(),
			Description: fmt.Sprintf("%s released from jail", a.ID),
		})
	}
	return released
}
