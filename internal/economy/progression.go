// Package economy provides the cross-match progression economy: currency, upgrades and their effects.
// Progression only changes between matches; upgrade effects are frozen into a match at start.
package economy

import (
	"errors"
	"fmt"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/config"
)

// Upgrade names a purchasable upgrade track.
type Upgrade string

const (
	UpgradeSpeed    Upgrade = "speed"
	UpgradeCapacity Upgrade = "capacity"
)

// Upgrades lists every track in shop order.
var Upgrades = []Upgrade{UpgradeSpeed, UpgradeCapacity}

var (
	// ErrInsufficientFunds is a non-fatal purchase refusal; progression is unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
)

// Progression is the persistent meta-state carried across matches.
type Progression struct {
	Currency      int `json:"currency"`
	SpeedLevel    int `json:"speed_level"`
	CapacityLevel int `json:"capacity_level"`
}

// Level returns the current level of an upgrade track.
func (p Progression) Level(kind Upgrade) (int, error) {
	switch kind {
	case UpgradeSpeed:
		return p.SpeedLevel, nil
	case UpgradeCapacity:
		return p.CapacityLevel, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUpgrade, kind)
}

// Cost returns the price of the next level: base cost * (current level + 1).
func Cost(cfg *config.Config, kind Upgrade, p Progression) (int, error) {
	level, err := p.Level(kind)
	if err != nil {
		return 0, err
	}
	return cfg.Economy.UpgradeBaseCost * (level + 1), nil
}

// Purchase buys the next level of kind. On refusal the returned progression equals p.
func Purchase(cfg *config.Config, kind Upgrade, p Progression) (Progression, error) {
	cost, err := Cost(cfg, kind, p)
	if err != nil {
		return p, err
	}
	if p.Currency < cost {
		return p, fmt.Errorf("%w: %s costs %d, balance %d", ErrInsufficientFunds, kind, cost, p.Currency)
	}

	next := p
	next.Currency -= cost
	switch kind {
	case UpgradeSpeed:
		next.SpeedLevel++
	case UpgradeCapacity:
		next.CapacityLevel++
	}
	return next, nil
}

// AwardForWin credits the per-win amount when the human-aligned team won.
func AwardForWin(cfg *config.Config, winner arena.Team, p Progression) Progression {
	human, err := arena.ParseTeam(cfg.Match.HumanTeam)
	if err != nil || winner != human {
		return p
	}
	p.Currency += cfg.Economy.CurrencyPerWin
	return p
}

// ModifiersFor computes the human agent's match modifiers from progression.
func ModifiersFor(cfg *config.Config, p Progression) arena.Modifiers {
	return arena.Modifiers{
		HumanSpeed:    cfg.Movement.BaseSpeed + float64(p.SpeedLevel)*cfg.Economy.SpeedPerLevel,
		HumanCapacity: 1 + p.CapacityLevel*cfg.Economy.CapacityPerLevel,
	}
}
