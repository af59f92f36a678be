package backend

import (
	"github.com/meridian-player/meridian/backend/mediaprovider"
)

// DefaultMediaSource picks the source flagged as default, falling back to
// the first in server-provided order. Pure and deterministic.
func DefaultMediaSource(sources []mediaprovider.MediaSource) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoSourcesAvailable
	}
	for _, s := range sources {
		if s.IsDefault {
			return s.ID, nil
		}
	}
	return sources[0].ID, nil
}

// SelectMediaSource validates that requestedID is a member of sources
// and returns it. Pure and deterministic.
func SelectMediaSource(sources []mediaprovider.MediaSource, requestedID string) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoSourcesAvailable
	}
	for _, s := range sources {
		if s.ID == requestedID {
			return s.ID, nil
		}
	}
	return "", &SourceNotFoundError{RequestedID: requestedID}
}
