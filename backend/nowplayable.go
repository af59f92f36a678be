package backend

import (
	"context"
	"log"
	"time"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

const audioSessionActivateTimeout = 5 * time.Second

// NowPlayableCommandType enumerates the remote commands the OS media
// surface may deliver.
type NowPlayableCommandType int

const (
	CommandPlay NowPlayableCommandType = iota
	CommandPause
	CommandTogglePlayPause
	CommandSkipForward
	CommandSkipBackward
	CommandSeek
	CommandChangePlaybackRate
)

// NowPlayableCommand is an inbound OS remote command. Only the field
// relevant to the Type carries a value.
type NowPlayableCommand struct {
	Type        NowPlayableCommandType
	AmountTicks int64   // skip commands
	Pct         float64 // seek [0..1]
	Rate        float64 // changePlaybackRate
}

// NowPlayingInfo is the metadata pushed to the OS now-playing surface.
type NowPlayingInfo struct {
	ItemID        string
	Title         string
	PositionTicks int64
	DurationTicks int64
	Rate          float64
	Playing       bool
}

// RemoteCommandHandler is the OS remote-control capability: it accepts
// command registrations, surfaces inbound commands, and displays
// now-playing metadata. UpdateNowPlaying is side-effect only and never
// fails the session.
type RemoteCommandHandler interface {
	RegisterCommands(cmds []NowPlayableCommandType, handler func(NowPlayableCommand)) error
	ClearCommands()
	UpdateNowPlaying(info NowPlayingInfo)
}

// AudioSession is the OS audio-focus capability. Activate may block on OS
// resource acquisition, so it takes a context for cancellation.
type AudioSession interface {
	Activate(ctx context.Context) error
	Deactivate() error
	OnInterruptionBegan(func())
	OnInterruptionEnded(func())
}

// DefaultRegisteredCommands is the command set registered for every session.
var DefaultRegisteredCommands = []NowPlayableCommandType{
	CommandPlay,
	CommandPause,
	CommandTogglePlayPause,
	CommandSkipForward,
	CommandSkipBackward,
	CommandSeek,
	CommandChangePlaybackRate,
}

// NowPlayableBridge maintains a 1:1 reflection between the playback state
// and the OS remote-control target, and owns the audio-focus lifecycle.
// Inbound OS commands are translated into intents and submitted to the
// coordinator as ordinary events; the bridge never mutates playback state
// directly.
type NowPlayableBridge struct {
	pc     *PlaybackCoordinator
	remote RemoteCommandHandler
	audio  AudioSession

	curItem *mediaprovider.Item
	active  bool

	onNotice []func(error)
}

func NewNowPlayableBridge(pc *PlaybackCoordinator, remote RemoteCommandHandler, audio AudioSession) *NowPlayableBridge {
	b := &NowPlayableBridge{pc: pc, remote: remote, audio: audio}

	pc.OnSessionStart(func(item *mediaprovider.Item) {
		b.curItem = item
		if err := b.Activate(); err != nil {
			b.notice(err)
		}
		if err := b.RegisterCommands(DefaultRegisteredCommands); err != nil {
			b.notice(err)
		}
	})
	pc.OnSessionEnd(func() {
		b.curItem = nil
		b.Deactivate()
	})
	pc.OnStateChange(func(s PlaybackState) {
		if b.curItem != nil {
			b.UpdateMetadata(b.curItem, s.PositionTicks, s.Rate)
		}
	})
	pc.OnInterruptionEnded(func() {
		// the forced pause already happened; try to get focus back, leaving
		// playback paused either way
		if err := b.ReactivateAfterInterruption(); err != nil {
			b.notice(err)
		}
	})

	audio.OnInterruptionBegan(pc.NotifyInterrupted)
	audio.OnInterruptionEnded(pc.NotifyInterruptionEnded)

	return b
}

// Activate acquires OS audio focus for the current session, bounded by a
// timeout so a contended OS never wedges the session start.
func (b *NowPlayableBridge) Activate() error {
	ctx, cancel := context.WithTimeout(b.pc.ctx, audioSessionActivateTimeout)
	defer cancel()
	if err := b.audio.Activate(ctx); err != nil {
		return &AudioSessionError{Kind: CannotActivateSession, Cause: err}
	}
	b.active = true
	return nil
}

// Deactivate releases audio focus and flushes remote-command
// registrations. Safe to call when not active.
func (b *NowPlayableBridge) Deactivate() {
	b.remote.ClearCommands()
	if !b.active {
		return
	}
	b.active = false
	if err := b.audio.Deactivate(); err != nil {
		log.Printf("error deactivating audio session: %v", err)
	}
}

// RegisterCommands registers the remote command set with the OS surface.
func (b *NowPlayableBridge) RegisterCommands(cmds []NowPlayableCommandType) error {
	if len(cmds) == 0 {
		return &AudioSessionError{Kind: NoRegisteredCommands}
	}
	if err := b.remote.RegisterCommands(cmds, b.handleRemoteCommand); err != nil {
		return &AudioSessionError{Kind: NoRegisteredCommands, Cause: err}
	}
	return nil
}

// ReactivateAfterInterruption re-acquires audio focus after an OS
// interruption ends, retrying once. Failure is reported but is not fatal:
// playback stays paused, recoverable by an explicit user play.
func (b *NowPlayableBridge) ReactivateAfterInterruption() error {
	err := b.Activate()
	if err == nil {
		return nil
	}
	if err = b.Activate(); err == nil {
		return nil
	}
	return &AudioSessionError{Kind: CannotReactivateSession, Cause: err}
}

// UpdateMetadata pushes now-playing info to the OS surface. Side-effect
// only; it never fails the session.
func (b *NowPlayableBridge) UpdateMetadata(item *mediaprovider.Item, positionTicks int64, rate float64) {
	b.remote.UpdateNowPlaying(NowPlayingInfo{
		ItemID:        item.ID,
		Title:         item.DisplayTitle(),
		PositionTicks: positionTicks,
		DurationTicks: item.RunTimeTicks,
		Rate:          rate,
		Playing:       rate > 0,
	})
}

// Registers a callback for non-fatal audio session notices.
func (b *NowPlayableBridge) OnNotice(cb func(error)) {
	b.onNotice = append(b.onNotice, cb)
}

func (b *NowPlayableBridge) handleRemoteCommand(cmd NowPlayableCommand) {
	var in Intent
	switch cmd.Type {
	case CommandPlay:
		in = Intent{Type: IntentPlay}
	case CommandPause:
		in = Intent{Type: IntentPause}
	case CommandTogglePlayPause:
		in = Intent{Type: IntentTogglePlayPause}
	case CommandSkipForward:
		in = SkipForward(cmd.AmountTicks)
	case CommandSkipBackward:
		in = SkipBackward(cmd.AmountTicks)
	case CommandSeek:
		in = SeekPercent(cmd.Pct)
	case CommandChangePlaybackRate:
		in = ChangeRate(cmd.Rate)
	default:
		log.Printf("unknown remote command received: %v", cmd.Type)
		return
	}
	if err := b.pc.Submit(in); err != nil {
		log.Printf("remote %s command rejected: %v", in.Type, err)
	}
}

func (b *NowPlayableBridge) notice(err error) {
	log.Printf("now playable notice: %v", err)
	for _, cb := range b.onNotice {
		cb(err)
	}
}

// NullAudioSession is the audio-focus capability for platforms without a
// focus broker. Activation always succeeds and interruptions never occur.
type NullAudioSession struct {
	interruptionBegan func()
	interruptionEnded func()
}

func (n *NullAudioSession) Activate(context.Context) error { return nil }
func (n *NullAudioSession) Deactivate() error              { return nil }

func (n *NullAudioSession) OnInterruptionBegan(cb func()) {
	n.interruptionBegan = cb
}

func (n *NullAudioSession) OnInterruptionEnded(cb func()) {
	n.interruptionEnded = cb
}
