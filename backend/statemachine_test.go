package backend

import (
	"errors"
	"testing"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

const testDuration = 90 * 60 * mediaprovider.TicksPerSecond

func newReadyMachine(t *testing.T) *playbackStateMachine {
	t.Helper()
	m := newPlaybackStateMachine("src1")
	if err := m.beginLoading(); err != nil {
		t.Fatalf("beginLoading: %v", err)
	}
	if err := m.apply(Intent{Type: intentSourceReady, Ticks: testDuration}); err != nil {
		t.Fatalf("sourceReady: %v", err)
	}
	return m
}

func newPlayingMachine(t *testing.T) *playbackStateMachine {
	t.Helper()
	m := newReadyMachine(t)
	if err := m.apply(Intent{Type: IntentPlay}); err != nil {
		t.Fatalf("play: %v", err)
	}
	return m
}

func TestStateMachine_LoadLifecycle(t *testing.T) {
	m := newPlaybackStateMachine("src1")
	if m.state.Phase != PhaseIdle {
		t.Fatalf("initial phase = %v, want idle", m.state.Phase)
	}
	if err := m.beginLoading(); err != nil {
		t.Fatalf("beginLoading: %v", err)
	}
	if err := m.beginLoading(); err == nil {
		t.Error("beginLoading from loading should fail")
	}
	if err := m.apply(Intent{Type: intentSourceReady, Ticks: testDuration}); err != nil {
		t.Fatalf("sourceReady: %v", err)
	}
	if m.state.Phase != PhaseReady {
		t.Errorf("phase = %v, want ready", m.state.Phase)
	}
	if m.state.DurationTicks != testDuration {
		t.Errorf("duration = %d, want %d", m.state.DurationTicks, testDuration)
	}
}

func TestStateMachine_SourceReadyClampsResumePosition(t *testing.T) {
	m := newPlaybackStateMachine("src1")
	if err := m.beginLoading(); err != nil {
		t.Fatalf("beginLoading: %v", err)
	}
	// a resume position saved against an older cut of the item may
	// exceed the duration the source actually reports
	m.state.PositionTicks = testDuration + 30*mediaprovider.TicksPerSecond
	if err := m.apply(Intent{Type: intentSourceReady, Ticks: testDuration}); err != nil {
		t.Fatalf("sourceReady: %v", err)
	}
	if m.state.PositionTicks != testDuration {
		t.Errorf("position = %d, want clamped to %d", m.state.PositionTicks, testDuration)
	}

	m = newPlaybackStateMachine("src1")
	m.beginLoading()
	m.state.PositionTicks = 30 * mediaprovider.TicksPerSecond
	if err := m.apply(Intent{Type: intentSourceReady, Ticks: testDuration}); err != nil {
		t.Fatalf("sourceReady: %v", err)
	}
	if want := 30 * mediaprovider.TicksPerSecond; m.state.PositionTicks != want {
		t.Errorf("position = %d, want %d preserved", m.state.PositionTicks, want)
	}
}

func TestStateMachine_LoadFailed(t *testing.T) {
	m := newPlaybackStateMachine("src1")
	m.beginLoading()
	cause := errors.New("connection refused")
	if err := m.apply(Intent{Type: intentLoadFailed, Err: cause}); err != nil {
		t.Fatalf("loadFailed: %v", err)
	}
	if m.state.Phase != PhaseError {
		t.Errorf("phase = %v, want error", m.state.Phase)
	}
	var pbErr *PlaybackError
	if !errors.As(m.state.LastError, &pbErr) || !errors.Is(pbErr, cause) {
		t.Errorf("LastError = %v, want PlaybackError wrapping cause", m.state.LastError)
	}
	if !m.state.Phase.Terminal() {
		t.Error("error phase should be terminal")
	}
}

func TestStateMachine_PlayPauseToggle(t *testing.T) {
	m := newReadyMachine(t)
	if err := m.apply(Intent{Type: IntentPlay}); err != nil {
		t.Fatalf("play: %v", err)
	}
	if m.state.Phase != PhasePlaying || m.state.Rate != 1 {
		t.Errorf("after play: phase=%v rate=%v", m.state.Phase, m.state.Rate)
	}
	// play while playing is a no-op
	if err := m.apply(Intent{Type: IntentPlay}); err != nil {
		t.Errorf("play while playing: %v", err)
	}
	if err := m.apply(Intent{Type: IntentPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if m.state.Phase != PhasePaused || m.state.Rate != 0 {
		t.Errorf("after pause: phase=%v rate=%v", m.state.Phase, m.state.Rate)
	}
	// pause is idempotent
	if err := m.apply(Intent{Type: IntentPause}); err != nil {
		t.Errorf("second pause: %v", err)
	}
	if m.state.Phase != PhasePaused {
		t.Errorf("after second pause phase=%v, want paused", m.state.Phase)
	}
	if err := m.apply(Intent{Type: IntentTogglePlayPause}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if m.state.Phase != PhasePlaying {
		t.Errorf("after toggle: phase=%v, want playing", m.state.Phase)
	}
}

func TestStateMachine_PlayWhileLoadingRejected(t *testing.T) {
	m := newPlaybackStateMachine("src1")
	m.beginLoading()
	err := m.apply(Intent{Type: IntentPlay})
	var tErr *InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("play while loading = %v, want InvalidTransitionError", err)
	}
	if tErr.Phase != PhaseLoading || tErr.Intent != IntentPlay {
		t.Errorf("error context = %+v", tErr)
	}
	if m.state.Phase != PhaseLoading {
		t.Errorf("rejected intent changed phase to %v", m.state.Phase)
	}
}

func TestStateMachine_SeekClamping(t *testing.T) {
	m := newPlayingMachine(t)
	tests := []struct {
		name string
		in   Intent
		want int64
	}{
		{"absolute past end", SeekTicks(testDuration * 2), testDuration},
		{"absolute negative", SeekTicks(-500), 0},
		{"skip back below zero", SkipBackward(100 * mediaprovider.TicksPerSecond), 0},
		{"skip forward past end", SkipForward(testDuration * 3), testDuration},
		{"percent above one", SeekPercent(1.5), testDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.apply(tt.in); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if m.state.PositionTicks != tt.want {
				t.Errorf("position = %d, want %d", m.state.PositionTicks, tt.want)
			}
			if m.state.PositionTicks > m.state.DurationTicks {
				t.Error("position exceeds duration")
			}
		})
	}
}

func TestStateMachine_ScrubRestorePhase(t *testing.T) {
	for _, start := range []Phase{PhasePlaying, PhasePaused} {
		t.Run(start.String(), func(t *testing.T) {
			m := newPlayingMachine(t)
			if start == PhasePaused {
				m.apply(Intent{Type: IntentPause})
			}
			if err := m.apply(Intent{Type: IntentScrubBegin}); err != nil {
				t.Fatalf("scrubBegin: %v", err)
			}
			if m.state.Phase != PhaseScrubbing || !m.state.IsScrubbing {
				t.Fatalf("after scrubBegin: %+v", m.state)
			}
			m.apply(Intent{Type: IntentScrubMove, Pct: 0.25})
			m.apply(Intent{Type: IntentScrubMove, Pct: 0.75})
			if m.state.ScrubTargetPct != 0.75 {
				t.Errorf("scrub target = %v, want 0.75", m.state.ScrubTargetPct)
			}
			if err := m.apply(Intent{Type: IntentScrubEnd, Pct: 0.5}); err != nil {
				t.Fatalf("scrubEnd: %v", err)
			}
			if m.state.Phase != start {
				t.Errorf("restored phase = %v, want %v", m.state.Phase, start)
			}
			want := int64(0.5 * float64(testDuration))
			if m.state.PositionTicks != want {
				t.Errorf("position = %d, want exactly %d", m.state.PositionTicks, want)
			}
			if m.state.IsScrubbing {
				t.Error("IsScrubbing still set after scrubEnd")
			}
		})
	}
}

func TestStateMachine_PositionUpdatesIgnoredWhileScrubbing(t *testing.T) {
	m := newPlayingMachine(t)
	m.apply(Intent{Type: IntentScrubBegin})
	if err := m.apply(Intent{Type: intentPositionUpdate, Ticks: 42}); err != nil {
		t.Fatalf("positionUpdate: %v", err)
	}
	if m.state.PositionTicks != 0 {
		t.Errorf("position advanced to %d during scrub", m.state.PositionTicks)
	}
}

func TestStateMachine_DuplicateScrubEndIsNoOp(t *testing.T) {
	m := newPlayingMachine(t)
	m.apply(Intent{Type: IntentScrubBegin})
	m.apply(Intent{Type: IntentScrubEnd, Pct: 0.5})
	before := m.state
	if err := m.apply(Intent{Type: IntentScrubEnd, Pct: 0.9}); err != nil {
		t.Fatalf("duplicate scrubEnd: %v", err)
	}
	if m.state != before {
		t.Errorf("duplicate scrubEnd changed state: %+v", m.state)
	}
	// a stale scrubMove after scrubEnd is also silently dropped
	if err := m.apply(Intent{Type: IntentScrubMove, Pct: 0.1}); err != nil {
		t.Fatalf("stale scrubMove: %v", err)
	}
	if m.state != before {
		t.Errorf("stale scrubMove changed state: %+v", m.state)
	}
}

func TestStateMachine_ReachedEnd(t *testing.T) {
	m := newPlayingMachine(t)
	m.apply(Intent{Type: intentPositionUpdate, Ticks: testDuration - 100})
	if err := m.apply(Intent{Type: intentReachedEnd}); err != nil {
		t.Fatalf("reachedEnd: %v", err)
	}
	if m.state.Phase != PhaseEnded {
		t.Errorf("phase = %v, want ended", m.state.Phase)
	}
	if m.state.PositionTicks != testDuration {
		t.Errorf("final position = %d, want duration", m.state.PositionTicks)
	}
	// late position update after terminal phase is dropped
	m.apply(Intent{Type: intentPositionUpdate, Ticks: 5})
	if m.state.PositionTicks != testDuration {
		t.Error("position update applied in terminal phase")
	}
}

func TestStateMachine_PlayerErrorFromAnyActivePhase(t *testing.T) {
	m := newPlayingMachine(t)
	m.apply(Intent{Type: IntentScrubBegin})
	if err := m.apply(Intent{Type: intentPlayerError, Err: errors.New("demuxer error")}); err != nil {
		t.Fatalf("playerError: %v", err)
	}
	if m.state.Phase != PhaseError || m.state.IsScrubbing {
		t.Errorf("after playerError: %+v", m.state)
	}
	// second error report is swallowed
	if err := m.apply(Intent{Type: intentPlayerError, Err: errors.New("again")}); err != nil {
		t.Errorf("playerError in terminal phase: %v", err)
	}
}

func TestStateMachine_ChangeRate(t *testing.T) {
	m := newPlayingMachine(t)
	if err := m.apply(ChangeRate(1.5)); err != nil {
		t.Fatalf("changeRate: %v", err)
	}
	if m.state.Rate != 1.5 {
		t.Errorf("rate = %v, want 1.5", m.state.Rate)
	}
	if err := m.apply(ChangeRate(-1)); err == nil {
		t.Error("negative rate accepted")
	}
}
