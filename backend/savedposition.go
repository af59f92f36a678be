package backend

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

// SavedPosition records where playback stopped so a later launch can
// offer to resume the item.
type SavedPosition struct {
	ItemID        string
	SourceID      string
	PositionTicks int64
}

type serializedSavedPosition struct {
	ServerID      string `json:"serverID"`
	ItemID        string `json:"itemID"`
	SourceID      string `json:"sourceID"`
	PositionTicks int64  `json:"positionTicks"`
}

// SavePlaybackPosition saves the current item and position to a JSON file.
// A session that is idle or within the first few seconds of an item is not
// worth resuming, so nothing is written and any stale file is removed.
func SavePlaybackPosition(serverID string, pc *PlaybackCoordinator, filepath string) error {
	item := pc.NowPlaying()
	state := pc.CurrentState()
	if item == nil || state.Phase.Terminal() || state.PositionTicks < 5*mediaprovider.TicksPerSecond {
		err := os.Remove(filepath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	saved := serializedSavedPosition{
		ServerID:      serverID,
		ItemID:        item.ID,
		SourceID:      pc.SelectedMediaSourceID(),
		PositionTicks: state.PositionTicks,
	}
	b, err := json.Marshal(saved)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath, b, 0644)
}

// Loads the saved playback position from the given filepath.
// Returns an error if the position could not be loaded for any reason,
// including the currently logged in server being different than the
// server on which the position was saved.
func LoadPlaybackPosition(filepath string, sm *ServerManager) (*SavedPosition, error) {
	b, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var savedData serializedSavedPosition
	if err := json.Unmarshal(b, &savedData); err != nil {
		return nil, err
	}

	if sm.ServerID.String() != savedData.ServerID {
		return nil, errors.New("saved position was from a different server")
	}

	return &SavedPosition{
		ItemID:        savedData.ItemID,
		SourceID:      savedData.SourceID,
		PositionTicks: savedData.PositionTicks,
	}, nil
}
