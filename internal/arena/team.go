// Package arena provides the world-state model of a match: teams, agents, snapshots and events.
package arena

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/gold-arena/internal/config"
)

// Team is the closed enumeration of arena teams.
type Team uint8

const (
	TeamRed Team = iota
	TeamGreen
	TeamBlue
)

// NumTeams is the total number of teams. Per-team state uses [NumTeams] arrays.
const NumTeams = 3

// AllTeams lists every team in fixed enumeration order.
var AllTeams = [NumTeams]Team{TeamRed, TeamGreen, TeamBlue}

var teamNames = [NumTeams]string{"RED", "GREEN", "BLUE"}

func (t Team) String() string {
	if int(t) < NumTeams {
		return teamNames[t]
	}
	return fmt.Sprintf("Team(%d)", uint8(t))
}

// Valid reports whether t is one of the enumerated teams.
func (t Team) Valid() bool { return int(t) < NumTeams }

// ParseTeam parses a case-insensitive team name.
func ParseTeam(s string) (Team, error) {
	for i, name := range teamNames {
		if strings.EqualFold(s, name) {
			return Team(i), nil
		}
	}
	return 0, fmt.Errorf("unknown team %q", s)
}

func (t Team) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid team %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(b []byte) error {
	parsed, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Point is a planar arena position. Height is fixed and not modelled.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Dist returns the planar Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Z-q.Z)
}

// PointOf converts a configured position.
func PointOf(v config.Vec2) Point {
	return Point{X: v.X, Z: v.Z}
}

// BasesFrom returns the configured base position of every team.
func BasesFrom(cfg *config.Config) [NumTeams]Point {
	return [NumTeams]Point{
		TeamRed:   PointOf(cfg.Teams.Red),
		TeamGreen: PointOf(cfg.Teams.Green),
		TeamBlue:  PointOf(cfg.Teams.Blue),
	}
}
