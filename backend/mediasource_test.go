package backend

import (
	"errors"
	"testing"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

func TestDefaultMediaSource(t *testing.T) {
	sources := []mediaprovider.MediaSource{
		{ID: "1080p", Name: "1080p"},
		{ID: "4k", Name: "4K", IsDefault: true},
		{ID: "720p", Name: "720p"},
	}

	id, err := DefaultMediaSource(sources)
	if err != nil {
		t.Fatalf("DefaultMediaSource: %v", err)
	}
	if id != "4k" {
		t.Errorf("default = %q, want flagged source", id)
	}

	// no default flag falls back to first in server order
	sources[1].IsDefault = false
	id, err = DefaultMediaSource(sources)
	if err != nil {
		t.Fatalf("DefaultMediaSource: %v", err)
	}
	if id != "1080p" {
		t.Errorf("default = %q, want first source", id)
	}

	// same input always yields the same result
	for range 10 {
		again, _ := DefaultMediaSource(sources)
		if again != id {
			t.Fatalf("non-deterministic result: %q vs %q", again, id)
		}
	}

	if _, err := DefaultMediaSource(nil); !errors.Is(err, ErrNoSourcesAvailable) {
		t.Errorf("empty sources err = %v, want ErrNoSourcesAvailable", err)
	}
}

func TestSelectMediaSource(t *testing.T) {
	sources := []mediaprovider.MediaSource{
		{ID: "a"}, {ID: "b"},
	}

	id, err := SelectMediaSource(sources, "b")
	if err != nil {
		t.Fatalf("SelectMediaSource: %v", err)
	}
	if id != "b" {
		t.Errorf("selected = %q, want b", id)
	}

	_, err = SelectMediaSource(sources, "zz")
	var nfErr *SourceNotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("unknown id err = %v, want SourceNotFoundError", err)
	}
	if nfErr.RequestedID != "zz" {
		t.Errorf("error names %q, want the requested id", nfErr.RequestedID)
	}

	if _, err := SelectMediaSource(nil, "a"); !errors.Is(err, ErrNoSourcesAvailable) {
		t.Errorf("empty sources err = %v, want ErrNoSourcesAvailable", err)
	}
}
