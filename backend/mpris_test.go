package backend

import (
	"errors"
	"testing"

	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

func newTestMPRISHandler(t *testing.T, cmds []NowPlayableCommandType) (*MPRISHandler, *[]NowPlayableCommand) {
	t.Helper()
	m := NewMPRISHandler("TestPlayer")
	var received []NowPlayableCommand
	if err := m.RegisterCommands(cmds, func(c NowPlayableCommand) {
		received = append(received, c)
	}); err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	return m, &received
}

func TestMPRISHandler_DispatchGating(t *testing.T) {
	m, received := newTestMPRISHandler(t, []NowPlayableCommandType{CommandPlay})

	if err := m.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := m.Pause(); !errors.Is(err, errNotSupported) {
		t.Errorf("Pause with unregistered command = %v, want errNotSupported", err)
	}
	if len(*received) != 1 || (*received)[0].Type != CommandPlay {
		t.Fatalf("received = %v, want single play", *received)
	}

	if can, _ := m.CanPlay(); !can {
		t.Error("CanPlay = false with play registered")
	}
	if can, _ := m.CanPause(); can {
		t.Error("CanPause = true with pause unregistered")
	}

	m.ClearCommands()
	if err := m.Play(); !errors.Is(err, errNotSupported) {
		t.Errorf("Play after ClearCommands = %v, want errNotSupported", err)
	}
	if can, _ := m.CanPlay(); can {
		t.Error("CanPlay = true after ClearCommands")
	}
}

func TestMPRISHandler_SkipAmounts(t *testing.T) {
	m, received := newTestMPRISHandler(t, DefaultRegisteredCommands)
	m.SkipForwardTicks = 30 * mediaprovider.TicksPerSecond
	m.SkipBackwardTicks = 15 * mediaprovider.TicksPerSecond

	m.Next()
	m.Previous()
	if len(*received) != 2 {
		t.Fatalf("received = %v", *received)
	}
	if got := (*received)[0]; got.Type != CommandSkipForward || got.AmountTicks != m.SkipForwardTicks {
		t.Errorf("Next dispatched %+v", got)
	}
	if got := (*received)[1]; got.Type != CommandSkipBackward || got.AmountTicks != m.SkipBackwardTicks {
		t.Errorf("Previous dispatched %+v", got)
	}
}

func TestMPRISHandler_SeekAndPosition(t *testing.T) {
	m, received := newTestMPRISHandler(t, DefaultRegisteredCommands)
	m.UpdateNowPlaying(NowPlayingInfo{
		ItemID:        "m1",
		Title:         "The Voyage",
		PositionTicks: 10 * mediaprovider.TicksPerSecond,
		DurationTicks: 100 * mediaprovider.TicksPerSecond,
		Rate:          1,
		Playing:       true,
	})

	// MPRIS positions are microseconds; one microsecond is ten ticks
	pos, err := m.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if want := int64(10 * 1_000_000); pos != want {
		t.Errorf("Position = %d, want %d", pos, want)
	}

	// Seek is relative to the current position
	if err := m.Seek(types.Microseconds(5 * 1_000_000)); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if len(*received) != 1 {
		t.Fatalf("received = %v", *received)
	}
	if got := (*received)[0]; got.Type != CommandSeek || got.Pct != 0.15 {
		t.Errorf("Seek dispatched %+v, want seek to 15%%", got)
	}

	// SetPosition for a different item is ignored
	if err := m.SetPosition(dbusItemIDPrefix+encodeItemID("other"), 0); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if len(*received) != 1 {
		t.Errorf("SetPosition for foreign item dispatched a command")
	}

	if err := m.SetPosition(dbusItemIDPrefix+encodeItemID("m1"), types.Microseconds(50*1_000_000)); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if got := (*received)[1]; got.Type != CommandSeek || got.Pct != 0.5 {
		t.Errorf("SetPosition dispatched %+v, want seek to 50%%", got)
	}
}

func TestMPRISHandler_PlaybackStatusAndMetadata(t *testing.T) {
	m, _ := newTestMPRISHandler(t, DefaultRegisteredCommands)

	if status, _ := m.PlaybackStatus(); status != types.PlaybackStatusStopped {
		t.Errorf("status with no info = %v, want stopped", status)
	}

	m.UpdateNowPlaying(NowPlayingInfo{
		ItemID:        "m1",
		Title:         "The Voyage",
		DurationTicks: 100 * mediaprovider.TicksPerSecond,
		Rate:          1,
		Playing:       true,
	})
	if status, _ := m.PlaybackStatus(); status != types.PlaybackStatusPlaying {
		t.Errorf("status = %v, want playing", status)
	}

	meta, err := m.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.Title != "The Voyage" {
		t.Errorf("metadata title = %q", meta.Title)
	}
	if want := types.Microseconds(100 * 1_000_000); meta.Length != want {
		t.Errorf("metadata length = %d, want %d", meta.Length, want)
	}

	m.UpdateNowPlaying(NowPlayingInfo{ItemID: "m1", Playing: false})
	if status, _ := m.PlaybackStatus(); status != types.PlaybackStatusPaused {
		t.Errorf("status = %v, want paused", status)
	}
}
