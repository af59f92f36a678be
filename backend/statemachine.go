package backend

// The discrete playback lifecycle stage.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhasePlaying
	PhasePaused
	PhaseScrubbing
	PhaseError
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseScrubbing:
		return "scrubbing"
	case PhaseError:
		return "error"
	case PhaseEnded:
		return "ended"
	}
	return "unknown"
}

// Terminal reports whether the phase ends the current session.
// A new session must be started to recover from a terminal phase.
func (p Phase) Terminal() bool {
	return p == PhaseError || p == PhaseEnded
}

// PlaybackState is the authoritative playback snapshot. It is mutated only
// by the state machine under the coordinator's serialized event loop;
// consumers receive copies.
type PlaybackState struct {
	Phase            Phase
	PositionTicks    int64
	DurationTicks    int64
	Rate             float64
	SelectedSourceID string
	IsScrubbing      bool
	ScrubTargetPct   float64
	LastError        error
}

// playbackStateMachine applies intents to PlaybackState one at a time.
// It holds no locks: serialization is the coordinator's responsibility.
type playbackStateMachine struct {
	state PlaybackState

	// phase to restore when a scrub gesture ends
	preScrubPhase Phase
}

func newPlaybackStateMachine(selectedSourceID string) *playbackStateMachine {
	return &playbackStateMachine{
		state: PlaybackState{
			Phase:            PhaseIdle,
			SelectedSourceID: selectedSourceID,
		},
	}
}

// beginLoading enters PhaseLoading. Only legal from idle.
func (m *playbackStateMachine) beginLoading() error {
	if m.state.Phase != PhaseIdle {
		return &InvalidTransitionError{Phase: m.state.Phase, Intent: intentLoadRequested}
	}
	m.state.Phase = PhaseLoading
	return nil
}

// apply validates the intent against the current phase and mutates state.
// Idempotent no-ops (pause while paused, scrubEnd while not scrubbing)
// return nil without changes.
func (m *playbackStateMachine) apply(in Intent) error {
	s := &m.state
	switch in.Type {
	case IntentPlay:
		switch s.Phase {
		case PhaseReady, PhasePaused:
			s.Phase = PhasePlaying
			s.Rate = 1
		case PhasePlaying:
			// no-op
		default:
			return m.invalid(in)
		}

	case IntentPause:
		switch s.Phase {
		case PhasePlaying:
			s.Phase = PhasePaused
			s.Rate = 0
		case PhasePaused, PhaseReady:
			// no-op
		default:
			return m.invalid(in)
		}

	case IntentTogglePlayPause:
		switch s.Phase {
		case PhasePlaying:
			s.Phase = PhasePaused
			s.Rate = 0
		case PhasePaused, PhaseReady:
			s.Phase = PhasePlaying
			s.Rate = 1
		default:
			return m.invalid(in)
		}

	case IntentSeekTicks:
		if !m.seekable() {
			return m.invalid(in)
		}
		s.PositionTicks = clampTicks(in.Ticks, s.DurationTicks)

	case IntentSeekPercent:
		if !m.seekable() {
			return m.invalid(in)
		}
		s.PositionTicks = clampTicks(pctToTicks(in.Pct, s.DurationTicks), s.DurationTicks)

	case IntentSkipForward:
		if !m.seekable() {
			return m.invalid(in)
		}
		s.PositionTicks = clampTicks(s.PositionTicks+in.Ticks, s.DurationTicks)

	case IntentSkipBackward:
		if !m.seekable() {
			return m.invalid(in)
		}
		s.PositionTicks = clampTicks(s.PositionTicks-in.Ticks, s.DurationTicks)

	case IntentChangeRate:
		if in.Rate < 0 {
			return m.invalid(in)
		}
		switch s.Phase {
		case PhasePlaying, PhasePaused, PhaseReady:
			s.Rate = in.Rate
		default:
			return m.invalid(in)
		}

	case IntentScrubBegin:
		switch s.Phase {
		case PhasePlaying, PhasePaused:
			m.preScrubPhase = s.Phase
			s.Phase = PhaseScrubbing
			s.IsScrubbing = true
			s.ScrubTargetPct = ticksToPct(s.PositionTicks, s.DurationTicks)
		case PhaseScrubbing:
			// no-op
		default:
			return m.invalid(in)
		}

	case IntentScrubMove:
		if s.Phase != PhaseScrubbing {
			return nil // stale drag callback after scrubEnd
		}
		s.ScrubTargetPct = clampPct(in.Pct)

	case IntentScrubEnd:
		if s.Phase != PhaseScrubbing {
			return nil // duplicate scrubEnd from UI, defend silently
		}
		pct := clampPct(in.Pct)
		s.PositionTicks = pctToTicks(pct, s.DurationTicks)
		s.ScrubTargetPct = 0
		s.IsScrubbing = false
		s.Phase = m.preScrubPhase

	case intentSourceReady:
		if s.Phase != PhaseLoading {
			return m.invalid(in)
		}
		s.DurationTicks = in.Ticks
		// a resume position from a stale save may exceed the real duration
		s.PositionTicks = clampTicks(s.PositionTicks, s.DurationTicks)
		s.Phase = PhaseReady

	case intentLoadFailed:
		if s.Phase != PhaseLoading {
			return m.invalid(in)
		}
		s.LastError = &PlaybackError{Cause: in.Err}
		s.Phase = PhaseError

	case intentPlayerError:
		if s.Phase.Terminal() {
			return nil
		}
		s.LastError = &PlaybackError{Cause: in.Err}
		s.IsScrubbing = false
		s.Phase = PhaseError

	case intentReachedEnd:
		switch s.Phase {
		case PhasePlaying, PhasePaused:
			s.Rate = 0
			s.PositionTicks = s.DurationTicks
			s.Phase = PhaseEnded
		default:
			// player emitted end after teardown or during scrub settle
		}

	case intentPositionUpdate:
		// the driving clock never advances position during a scrub
		if s.IsScrubbing || s.Phase.Terminal() {
			return nil
		}
		s.PositionTicks = clampTicks(in.Ticks, s.DurationTicks)

	default:
		return m.invalid(in)
	}
	return nil
}

func (m *playbackStateMachine) seekable() bool {
	switch m.state.Phase {
	case PhaseReady, PhasePlaying, PhasePaused:
		return true
	}
	return false
}

func (m *playbackStateMachine) invalid(in Intent) error {
	return &InvalidTransitionError{Phase: m.state.Phase, Intent: in.Type}
}

func clampTicks(ticks, duration int64) int64 {
	if ticks < 0 {
		return 0
	}
	if duration > 0 && ticks > duration {
		return duration
	}
	return ticks
}

func clampPct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 1 {
		return 1
	}
	return pct
}

func pctToTicks(pct float64, duration int64) int64 {
	return int64(pct * float64(duration))
}

func ticksToPct(ticks, duration int64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(ticks) / float64(duration)
}
