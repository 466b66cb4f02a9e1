// Package pilot implements an autopilot for the human agent.
// It observes the arena via the API, decides on an intent, and acts via the control endpoints.
package pilot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/gold-arena/internal/arena"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	State       arena.State     `json:"state"`
	Progression ProgressionView `json:"progression"`
}

// ProgressionView mirrors GET /api/v1/progression.
type ProgressionView struct {
	Currency int                    `json:"currency"`
	Upgrades map[string]UpgradeView `json:"upgrades"`
}

// UpgradeView is one upgrade track in ProgressionView.
type UpgradeView struct {
	Level     int  `json:"level"`
	NextCost  int  `json:"next_cost"`
	CanAfford bool `json:"can_afford"`
}

// Observer fetches arena state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches the snapshot and progression.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/state", &snap.State); err != nil {
		return nil, fmt.Errorf("fetch state: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/progression", &snap.Progression); err != nil {
		return nil, fmt.Errorf("fetch progression: %w", err)
	}
	return snap, nil
}

// Ready reports whether the status endpoint answers.
func (o *Observer) Ready(ctx context.Context) bool {
	var status map[string]any
	return o.fetchJSON(ctx, "/api/v1/status", &status) == nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
