package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	sessionSeedVersion    = 1
	sessionSeedFilePrefix = "seed-"
	sessionSeedFileSuffix = ".json"
)

// AccessPolicy controls how a restored session may be re-entered.
type AccessPolicy string

const (
	AccessPolicyNone          AccessPolicy = "None"
	AccessPolicyRequirePin    AccessPolicy = "RequirePin"
	AccessPolicyRequireSignIn AccessPolicy = "RequireSignIn"
)

// SessionSeed is the minimal durable record allowing a signed-in session
// to be reconstructed after primary storage loss. UserID and ServerID are
// immutable identity; everything else may be overwritten wholesale.
type SessionSeed struct {
	UserID           string       `json:"userID"`
	ServerID         string       `json:"serverID"`
	Username         string       `json:"username"`
	ServerName       string       `json:"serverName"`
	CurrentServerURL string       `json:"currentServerURL"`
	ServerURLs       []string     `json:"serverURLs"`
	AccessPolicy     AccessPolicy `json:"accessPolicy"`
	PinHint          string       `json:"pinHint,omitempty"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Touch advances UpdatedAt, keeping it strictly monotonic even when the
// wall clock has not moved between mutations.
func (s *SessionSeed) Touch() {
	now := time.Now().UTC()
	if !now.After(s.UpdatedAt) {
		now = s.UpdatedAt.Add(time.Nanosecond)
	}
	s.UpdatedAt = now
}

// AddServerURL records a server URL in the seed's ordered set, moving it
// to the front when already present, and makes it current.
func (s *SessionSeed) AddServerURL(url string) {
	s.ServerURLs = slices.DeleteFunc(s.ServerURLs, func(u string) bool { return u == url })
	s.ServerURLs = append([]string{url}, s.ServerURLs...)
	s.CurrentServerURL = url
}

type versionedSeed struct {
	Version int         `json:"version"`
	Seed    SessionSeed `json:"seed"`
}

// SessionSeedStore persists one versioned seed blob per user id under dir.
// Writes are atomic (temp file then rename) so a torn write can never
// leave a blob mixing fields from two different seeds.
type SessionSeedStore struct {
	dir string
}

func NewSessionSeedStore(dir string) *SessionSeedStore {
	return &SessionSeedStore{dir: dir}
}

// Save overwrites the stored seed for seed.UserID, touching UpdatedAt.
func (st *SessionSeedStore) Save(seed *SessionSeed) error {
	seed.Touch()
	b, err := json.MarshalIndent(versionedSeed{Version: sessionSeedVersion, Seed: *seed}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(st.dir, 0700); err != nil {
		return err
	}
	path := st.seedPath(seed.UserID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load returns the seed for userID, or (nil, nil) if none was ever saved
// or it was deleted. An unreadable or unparseable blob returns a
// *StoreCorruptError, never "absent", so callers can force
// re-authentication instead of silently dropping the session.
func (st *SessionSeedStore) Load(userID string) (*SessionSeed, error) {
	path := st.seedPath(userID)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreCorruptError{Path: path, Cause: err}
	}
	var v versionedSeed
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, &StoreCorruptError{Path: path, Cause: err}
	}
	if v.Version != sessionSeedVersion {
		return nil, &StoreCorruptError{Path: path, Cause: fmt.Errorf("unsupported seed version %d", v.Version)}
	}
	if v.Seed.UserID != userID {
		return nil, &StoreCorruptError{Path: path, Cause: fmt.Errorf("seed user id mismatch: %q", v.Seed.UserID)}
	}
	return &v.Seed, nil
}

// Delete removes the stored seed for userID. Deleting an absent seed is
// not an error.
func (st *SessionSeedStore) Delete(userID string) error {
	err := os.Remove(st.seedPath(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Touch bumps UpdatedAt on the stored seed without changing anything else.
func (st *SessionSeedStore) Touch(userID string) error {
	seed, err := st.Load(userID)
	if err != nil {
		return err
	}
	if seed == nil {
		return fmt.Errorf("no session seed for user %s", userID)
	}
	return st.Save(seed)
}

// UserIDs lists the user ids with a stored seed, in no particular order.
func (st *SessionSeedStore) UserIDs() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, sessionSeedFilePrefix) && strings.HasSuffix(name, sessionSeedFileSuffix) {
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, sessionSeedFilePrefix), sessionSeedFileSuffix))
		}
	}
	return ids, nil
}

// MostRecent returns the seed with the latest UpdatedAt across all users,
// or (nil, nil) when the store is empty. Corrupt blobs surface as
// *StoreCorruptError rather than being skipped.
func (st *SessionSeedStore) MostRecent() (*SessionSeed, error) {
	ids, err := st.UserIDs()
	if err != nil {
		return nil, err
	}
	var latest *SessionSeed
	for _, id := range ids {
		seed, err := st.Load(id)
		if err != nil {
			return nil, err
		}
		if seed != nil && (latest == nil || seed.UpdatedAt.After(latest.UpdatedAt)) {
			latest = seed
		}
	}
	return latest, nil
}

func (st *SessionSeedStore) seedPath(userID string) string {
	return filepath.Join(st.dir, sessionSeedFilePrefix+userID+sessionSeedFileSuffix)
}
