package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/gold-arena/internal/ai"
	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
	"github.com/talgya/gold-arena/internal/interaction"
	"github.com/talgya/gold-arena/internal/movement"
)

var (
	// ErrNotActive is returned when stepping a snapshot whose match is not running.
	ErrNotActive = errors.New("match is not active")

	// ErrInvariant wraps arena.ErrInvariant; a tick that would break it is never published.
	ErrInvariant = arena.ErrInvariant
)

// Step computes the snapshot that follows prev after dt seconds with the given human intent.
// prev is never modified. On error prev is returned unchanged.
//
// Order within a tick:
//
//	human: move, steal (all eligible enemy bases), tag, deposit
//	each autonomous agent in index order: decide, move, steal (raid team only), tag, deposit
//	jail countdown over every agent (agents jailed this tick are skipped)
//	win check in team enumeration order
func Step(cfg *config.Config, prev arena.State, in arena.Intent, dt float64) (arena.State, error) {
	if prev.Status != arena.StatusActive {
		return prev, ErrNotActive
	}

	next := prev.Clone()
	next.Tick++
	next.Events = nil
	rules := interaction.RulesFrom(cfg)
	fresh := make(map[int]bool)
	in = in.Clamped()

	if h := next.HumanIndex(); h >= 0 && !next.Agents[h].Jailed {
		movement.Human(&next.Agents[h], in, next.Mods.HumanSpeed)
		if in.Steal {
			interaction.StealAll(&next, h, rules)
		}
		if in.Tag {
			markFresh(fresh, interaction.Tag(&next, h, rules))
		}
		interaction.Deposit(&next, h, rules)
	}

	for i := range next.Agents {
		a := &next.Agents[i]
		if a.IsHuman() || a.Jailed {
			continue
		}
		d := ai.Decide(&next, i, cfg.Interaction.DefenseRadius)
		movement.Seek(a, d.Target, cfg.Movement.AutonomousSpeed, cfg.Movement.ArrivalEpsilon)
		if d.CanRaid {
			interaction.Steal(&next, i, d.RaidTeam, rules)
		}
		markFresh(fresh, interaction.Tag(&next, i, rules))
		interaction.Deposit(&next, i, rules)
	}

	interaction.TickJail(&next, dt, fresh)

	if err := next.Validate(); err != nil {
		return prev, fmt.Errorf("tick %d: %w", next.Tick, err)
	}

	if winner, ok := winningTeam(&next, cfg.Match.WinningScore); ok {
		next.Status = arena.StatusFinished
		next.Winner = &winner
		next.Events = append(next.Events, arena.Event{
			Tick:        next.Tick,
			Kind:        arena.EventMatchEnd,
			Team:        winner,
			From:        winner,
			Amount:      next.Scores[winner],
			Description: fmt.Sprintf("%s wins with %d gold", winner, next.Scores[winner]),
		})
	}
	return next, nil
}

// winningTeam returns the first participating team whose score reached the threshold.
func winningTeam(s *arena.State, threshold int) (arena.Team, bool) {
	for _, t := range s.Teams {
		if s.Scores[t] >= threshold {
			return t, true
		}
	}
	return 0, false
}

func markFresh(fresh map[int]bool, jailed []int) {
	for _, j := range jailed {
		fresh[j] = true
	}
}
