// Package telemetry tallies per-match statistics and writes them as CSV.
package telemetry

import (
	"sync"
	"time"

	"github.com/talgya/gold-arena/internal/arena"
)

// MatchRow is the summary of one finished match.
type MatchRow struct {
	MatchID     string `csv:"match_id" db:"id" json:"match_id"`
	Winner      string `csv:"winner" db:"winner" json:"winner"`
	Teams       int    `csv:"teams" db:"teams" json:"teams"`
	Ticks       uint64 `csv:"ticks" db:"ticks" json:"ticks"`
	RedScore    int    `csv:"red_score" db:"red_score" json:"red_score"`
	GreenScore  int    `csv:"green_score" db:"green_score" json:"green_score"`
	BlueScore   int    `csv:"blue_score" db:"blue_score" json:"blue_score"`
	Steals      int    `csv:"steals" db:"steals" json:"steals"`
	Tags        int    `csv:"tags" db:"tags" json:"tags"`
	Deposits    int    `csv:"deposits" db:"deposits" json:"deposits"`
	HumanSteals int    `csv:"human_steals" db:"human_steals" json:"human_steals"`
	HumanTags   int    `csv:"human_tags" db:"human_tags" json:"human_tags"`
	FinishedAt  int64  `csv:"finished_at" db:"finished_at" json:"finished_at"` // Unix seconds
}

// Tally accumulates event counts for the match in progress. Safe for concurrent use.
type Tally struct {
	mu      sync.Mutex
	matchID string
	row     MatchRow
}

// Reset starts counting a new match.
func (t *Tally) Reset(s arena.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.matchID = s.MatchID
	t.row = MatchRow{MatchID: s.MatchID, Teams: len(s.Teams)}
}

// Observe counts the events of one tick.
func (t *Tally) Observe(events []arena.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ev := range events {
		switch ev.Kind {
		case arena.EventSteal:
			t.row.Steals++
			if ev.Human {
				t.row.HumanSteals++
			}
		case arena.EventTag:
			t.row.Tags++
			if ev.Human {
				t.row.HumanTags++
			}
		case arena.EventDeposit:
			t.row.Deposits++
		}
	}
}

// Finish completes the row from the final snapshot.
func (t *Tally) Finish(final arena.State, at time.Time) MatchRow {
	t.mu.Lock()
	row, matchID := t.row, t.matchID
	t.mu.Unlock()
	if matchID != final.MatchID {
		row = MatchRow{MatchID: final.MatchID, Teams: len(final.Teams)}
	}
	if final.Winner != nil {
		row.Winner = final.Winner.String()
	}
	row.Ticks = final.Tick
	row.RedScore = final.Scores[arena.TeamRed]
	row.GreenScore = final.Scores[arena.TeamGreen]
	row.BlueScore = final.Scores[arena.TeamBlue]
	row.FinishedAt = at.Unix()
	return row
}
