package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSourcesAvailable is returned when an item has no media sources to play.
	ErrNoSourcesAvailable = errors.New("no media sources available")

	// ErrNoActiveSession is returned when an intent arrives with no playback session loaded.
	ErrNoActiveSession = errors.New("no active playback session")
)

// SourceNotFoundError is returned when an explicitly requested media source
// is not a member of the item's source set.
type SourceNotFoundError struct {
	RequestedID string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("media source %q not found", e.RequestedID)
}

// InvalidTransitionError is returned when an intent is not legal
// from the current playback phase.
type InvalidTransitionError struct {
	Phase  Phase
	Intent IntentType
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s not accepted while %s", e.Intent, e.Phase)
}

type AudioSessionErrorKind int

const (
	CannotSetCategory AudioSessionErrorKind = iota
	CannotActivateSession
	CannotReactivateSession
	NoRegisteredCommands
)

func (k AudioSessionErrorKind) String() string {
	switch k {
	case CannotSetCategory:
		return "cannot set audio session category"
	case CannotActivateSession:
		return "cannot activate audio session"
	case CannotReactivateSession:
		return "cannot reactivate audio session"
	case NoRegisteredCommands:
		return "no remote commands registered"
	}
	return "unknown audio session error"
}

// AudioSessionError wraps an OS-level audio focus or remote-command failure.
// These are recoverable: playback stays paused and may be resumed by the user.
type AudioSessionError struct {
	Kind  AudioSessionErrorKind
	Cause error
}

func (e *AudioSessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *AudioSessionError) Unwrap() error {
	return e.Cause
}

// PlaybackError is an opaque player or network failure.
// It is terminal for the session and moves the state machine to PhaseError.
type PlaybackError struct {
	Cause error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed: %v", e.Cause)
}

func (e *PlaybackError) Unwrap() error {
	return e.Cause
}

// StoreCorruptError indicates the durable session seed store is unreadable.
// Distinct from "absent": callers should force re-authentication rather
// than silently treating corruption as no saved session.
type StoreCorruptError struct {
	Path  string
	Cause error
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("session seed store corrupt at %s: %v", e.Path, e.Cause)
}

func (e *StoreCorruptError) Unwrap() error {
	return e.Cause
}
