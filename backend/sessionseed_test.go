package backend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSessionSeedStore_SaveLoadDelete(t *testing.T) {
	st := NewSessionSeedStore(t.TempDir())

	seed := &SessionSeed{
		UserID:       "u1",
		ServerID:     "srv1",
		Username:     "alice",
		ServerName:   "Home",
		AccessPolicy: AccessPolicyRequirePin,
		PinHint:      "****23",
	}
	seed.AddServerURL("http://jellyfin.local:8096")
	if err := st.Save(seed); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Load("u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil for saved seed")
	}
	if got.Username != "alice" || got.ServerID != "srv1" || got.AccessPolicy != AccessPolicyRequirePin {
		t.Errorf("loaded seed = %+v", got)
	}
	if got.CurrentServerURL != "http://jellyfin.local:8096" {
		t.Errorf("current url = %q", got.CurrentServerURL)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("Save did not set UpdatedAt")
	}

	if err := st.Delete("u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = st.Load("u1")
	if err != nil || got != nil {
		t.Errorf("Load after delete = (%v, %v), want (nil, nil)", got, err)
	}
	// deleting an absent seed is not an error
	if err := st.Delete("u1"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSessionSeedStore_AbsentIsNotCorrupt(t *testing.T) {
	st := NewSessionSeedStore(t.TempDir())
	got, err := st.Load("nobody")
	if err != nil || got != nil {
		t.Errorf("Load absent = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestSessionSeedStore_CorruptBlob(t *testing.T) {
	dir := t.TempDir()
	st := NewSessionSeedStore(dir)
	path := filepath.Join(dir, sessionSeedFilePrefix+"u1"+sessionSeedFileSuffix)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := st.Load("u1")
	var corrupt *StoreCorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Load corrupt = %v, want StoreCorruptError", err)
	}
	if corrupt.Path != path {
		t.Errorf("error path = %q, want %q", corrupt.Path, path)
	}

	// corrupt blobs also fail MostRecent rather than being skipped
	if _, err := st.MostRecent(); !errors.As(err, &corrupt) {
		t.Errorf("MostRecent with corrupt blob = %v, want StoreCorruptError", err)
	}
}

func TestSessionSeed_TouchMonotonic(t *testing.T) {
	seed := &SessionSeed{UserID: "u1"}
	var prev time.Time
	for i := 0; i < 1000; i++ {
		seed.Touch()
		if !seed.UpdatedAt.After(prev) {
			t.Fatalf("UpdatedAt not strictly increasing at iteration %d", i)
		}
		prev = seed.UpdatedAt
	}
}

func TestSessionSeed_AddServerURLOrderedSet(t *testing.T) {
	seed := &SessionSeed{}
	seed.AddServerURL("http://a")
	seed.AddServerURL("http://b")
	seed.AddServerURL("http://a") // re-adding moves to front, no duplicate

	if len(seed.ServerURLs) != 2 {
		t.Fatalf("urls = %v, want 2 unique entries", seed.ServerURLs)
	}
	if seed.ServerURLs[0] != "http://a" || seed.ServerURLs[1] != "http://b" {
		t.Errorf("url order = %v", seed.ServerURLs)
	}
	if seed.CurrentServerURL != "http://a" {
		t.Errorf("current = %q, want most recently added", seed.CurrentServerURL)
	}
}

func TestSessionSeedStore_MostRecent(t *testing.T) {
	st := NewSessionSeedStore(t.TempDir())

	if seed, err := st.MostRecent(); err != nil || seed != nil {
		t.Fatalf("MostRecent on empty store = (%v, %v), want (nil, nil)", seed, err)
	}

	for _, id := range []string{"u1", "u2", "u3"} {
		if err := st.Save(&SessionSeed{UserID: id}); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if err := st.Touch("u2"); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	seed, err := st.MostRecent()
	if err != nil {
		t.Fatalf("MostRecent: %v", err)
	}
	if seed == nil || seed.UserID != "u2" {
		t.Errorf("MostRecent = %+v, want u2", seed)
	}
}
