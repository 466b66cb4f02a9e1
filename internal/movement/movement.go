// Package movement advances agent positions. Agents move in straight lines; arena geometry is ignored.
package movement

import (
	"math"

	"github.com/talgya/gold-arena/internal/arena"
)

// Human applies a clamped intent to the human agent: displacement = intent * speed for this tick.
// Facing follows the displacement when it is non-zero. Jailed agents stay put.
func Human(a *arena.Agent, in arena.Intent, speed float64) {
	if a.Jailed {
		return
	}
	in = in.Clamped()
	dx := float64(in.MoveX) * speed
	dz := float64(in.MoveZ) * speed
	a.Pos.X += dx
	a.Pos.Z += dz
	if dx != 0 || dz != 0 {
		a.Facing = math.Atan2(dx, dz)
	}
}

// Seek moves an autonomous agent one speed-sized step straight toward target.
// It reports false when the agent is already within epsilon (arrived) or jailed.
func Seek(a *arena.Agent, target arena.Point, speed, epsilon float64) bool {
	if a.Jailed {
		return false
	}
	dx := target.X - a.Pos.X
	dz := target.Z - a.Pos.Z
	dist := math.Hypot(dx, dz)
	if dist <= epsilon {
		return false
	}
	a.Pos.X += dx / dist * speed
	a.Pos.Z += dz / dist * speed
	a.Facing = math.Atan2(dx, dz)
	return true
}
