package arena

import "encoding/json"

// Intent is the per-tick input for the human agent. Axes are -1, 0 or +1.
type Intent struct {
	MoveX int  `json:"move_x"`
	MoveZ int  `json:"move_z"`
	Steal bool `json:"steal"`
	Tag   bool `json:"tag"`
}

// Clamped returns the intent with each axis clamped to {-1, 0, 1}. Out-of-range input is never rejected.
func (in Intent) Clamped() Intent {
	in.MoveX = sign(in.MoveX)
	in.MoveZ = sign(in.MoveZ)
	return in
}

// UnmarshalJSON accepts any JSON number on the axes and keeps only its sign,
// so fractional or out-of-range input is clamped rather than rejected.
func (in *Intent) UnmarshalJSON(b []byte) error {
	var raw struct {
		MoveX float64 `json:"move_x"`
		MoveZ float64 `json:"move_z"`
		Steal bool    `json:"steal"`
		Tag   bool    `json:"tag"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*in = Intent{MoveX: signf(raw.MoveX), MoveZ: signf(raw.MoveZ), Steal: raw.Steal, Tag: raw.Tag}
	return nil
}

func signf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// EventKind classifies a simulation event.
type EventKind string

const (
	EventMatchStart EventKind = "match_start"
	EventSteal      EventKind = "steal"
	EventTag        EventKind = "tag"
	EventDeposit    EventKind = "deposit"
	EventRelease    EventKind = "release"
	EventMatchEnd   EventKind = "match_end"
	EventUpgrade    EventKind = "upgrade"
)

// Event is a discrete occurrence committed during a tick. Presentation layers own display timing.
type Event struct {
	Tick        uint64    `json:"tick"`
	Kind        EventKind `json:"kind"`
	Agent       string    `json:"agent,omitempty"`  // Acting agent
	Team        Team      `json:"team"`             // Acting agent's team, or the winner
	Other       string    `json:"other,omitempty"`  // Tag victim
	From        Team      `json:"from"`             // Steal: robbed team. Tag: victim's team
	Amount      int       `json:"amount,omitempty"` // Gold moved
	Human       bool      `json:"human"`            // Actor is the human agent
	Description string    `json:"description"`
}
