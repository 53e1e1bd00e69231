package portfolio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"MarketTrigger/internal/model"
)

// State is the persisted paper account.
type State struct {
	Cash      float64                    `json:"cash"`
	Positions map[string]*model.Position `json:"positions"`
	Orders    []model.Order              `json:"orders"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// LoadState reads the account from a JSON file. Returns nil, nil if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Positions == nil {
		state.Positions = make(map[string]*model.Position)
	}
	return &state, nil
}

// SaveState writes the account to a JSON file, creating its directory.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
