package mpv

import (
	"context"
	"errors"
	"fmt"

	"github.com/supersonic-app/go-mpv"

	"github.com/meridian-player/meridian/backend/player"
)

// Error returned by many Player functions if called before the player has been initialized.
var ErrUnitialized error = errors.New("mpv player uninitialized")

const ticksPerSecond = 10_000_000

var _ player.Player = (*Player)(nil)

// Player encapsulates the mpv instance and provides functions
// to control it and to check its status.
type Player struct {
	player.BaseCallbackImpl

	mpv         *mpv.Mpv
	initialized bool
	status      player.Status
	seeking     bool
	clientName  string

	// set while a load is in flight; cleared on file-loaded
	loading      bool
	pendingStart int64

	bgCancel context.CancelFunc
}

// Returns a new player.
// Must call Init on the player before it is ready for playback.
func New() *Player {
	return NewWithClientName("")
}

// Same as New, but sets the application name that mpv
// reports to the system audio API.
func NewWithClientName(c string) *Player {
	return &Player{clientName: c}
}

// Initializes the Player and makes it ready for playback.
// Most Player functions will return ErrUnitialized if called before Init.
func (p *Player) Init(maxCacheMB int) error {
	if !p.initialized {
		m := mpv.Create()

		m.SetOptionString("idle", "yes")
		m.SetOptionString("force-seekable", "yes")
		m.SetOptionString("terminal", "no")

		// limit in-memory cache size
		maxBackMB := maxCacheMB / 3
		maxForwardMB := maxBackMB + maxBackMB
		m.SetOptionString("demuxer-max-bytes", fmt.Sprintf("%dMiB", maxForwardMB))
		m.SetOptionString("demuxer-max-back-bytes", fmt.Sprintf("%dMiB", maxBackMB))

		if p.clientName != "" {
			m.SetOptionString("audio-client-name", p.clientName)
		}

		if err := m.Initialize(); err != nil {
			return fmt.Errorf("error initializing mpv: %s", err.Error())
		}

		p.mpv = m
	}
	ctx, cancel := context.WithCancel(context.Background())
	go p.eventHandler(ctx)
	p.bgCancel = cancel
	p.initialized = true
	return nil
}

// Load begins loading the given URL, replacing any current media. It
// returns immediately; readiness or failure is reported through the
// OnSourceReady / OnLoadFailed callbacks.
func (p *Player) Load(url string, startTicks int64) error {
	if !p.initialized {
		return ErrUnitialized
	}
	p.loading = true
	p.pendingStart = startTicks
	if err := p.mpv.Command([]string{"loadfile", url, "replace"}); err != nil {
		p.loading = false
		return err
	}
	// hold playback until an explicit Play
	return p.setPaused(true)
}

func (p *Player) Play() error {
	if !p.initialized {
		return ErrUnitialized
	}
	if p.status.State == player.Playing {
		return nil
	}
	err := p.setPaused(false)
	if err == nil {
		p.setState(player.Playing)
	}
	return err
}

func (p *Player) Pause() error {
	if p.status.State != player.Playing {
		return nil
	}
	err := p.setPaused(true)
	if err == nil {
		p.setState(player.Paused)
	}
	return err
}

// Stops playback and unloads the current media.
func (p *Player) Stop() error {
	if !p.initialized {
		return ErrUnitialized
	}
	var err error
	if p.status.State != player.Stopped {
		if err = p.mpv.Command([]string{"stop"}); err == nil {
			// if player was paused, stop command actually doesn't clear pause state
			err = p.setPaused(false)
		}
	}
	if err == nil {
		p.loading = false
		p.setState(player.Stopped)
	}
	return err
}

// Seeks within the currently playing media.
func (p *Player) SeekTicks(ticks int64) error {
	if !p.initialized {
		return ErrUnitialized
	}
	target := fmt.Sprintf("%0.1f", float64(ticks)/ticksPerSecond)
	p.seeking = true
	return p.mpv.Command([]string{"seek", target, "absolute"})
}

func (p *Player) SetRate(rate float64) error {
	if !p.initialized {
		return ErrUnitialized
	}
	if rate <= 0 {
		return p.Pause()
	}
	return p.mpv.SetProperty("speed", mpv.FORMAT_DOUBLE, rate)
}

// Get the current status of the player.
func (p *Player) GetStatus() player.Status {
	if !p.initialized {
		return p.status
	}

	pos, _ := p.mpv.GetProperty("playback-time", mpv.FORMAT_DOUBLE)
	dur, _ := p.mpv.GetProperty("duration", mpv.FORMAT_DOUBLE)
	paused, _ := p.mpv.GetProperty("pause", mpv.FORMAT_FLAG)

	if pos != nil {
		p.status.PositionTicks = int64(pos.(float64) * ticksPerSecond)
	}
	if dur != nil {
		p.status.DurationTicks = int64(dur.(float64) * ticksPerSecond)
	}
	// Sync our state with MPV's actual pause state
	if paused != nil {
		mpvPaused := paused.(bool)
		if mpvPaused && p.status.State == player.Playing {
			p.status.State = player.Paused
		} else if !mpvPaused && p.status.State == player.Paused {
			p.status.State = player.Playing
		}
	}
	return p.status
}

// Returns true if a seek is currently in progress.
func (p *Player) IsSeeking() bool {
	return p.seeking && p.status.State == player.Playing
}

// Destroy the player.
func (p *Player) Destroy() {
	if p.bgCancel != nil {
		p.bgCancel()
	}
	if p.initialized {
		p.mpv.Command([]string{"stop"})
		p.mpv.TerminateDestroy()
		p.initialized = false
	}
}

func (p *Player) setPaused(paused bool) error {
	return p.mpv.SetProperty("pause", mpv.FORMAT_FLAG, paused)
}

// sets the state and invokes callbacks, if triggered
func (p *Player) setState(s player.State) {
	switch {
	case s == player.Playing && p.status.State != player.Playing:
		defer p.InvokeOnPlaying()
	case s == player.Paused && p.status.State != player.Paused:
		defer p.InvokeOnPaused()
	case s == player.Stopped && p.status.State != player.Stopped:
		defer p.InvokeOnStopped()
	}
	p.status.State = s
}

func (p *Player) eventHandler(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			e := p.mpv.WaitEvent(1 /*timeout seconds*/)
			switch e.Event_Id {
			case mpv.EVENT_PLAYBACK_RESTART:
				fallthrough
			case mpv.EVENT_SEEK:
				p.seeking = false
				p.InvokeOnSeek()
			case mpv.EVENT_FILE_LOADED:
				p.loading = false
				if start := p.pendingStart; start > 0 {
					p.pendingStart = 0
					p.SeekTicks(start)
				}
				status := p.GetStatus()
				p.InvokeOnSourceReady(status.DurationTicks)
			case mpv.EVENT_IDLE:
				wasLoading := p.loading
				p.loading = false
				status := p.GetStatus()
				p.status.DurationTicks = 0
				p.status.PositionTicks = 0
				if wasLoading {
					p.InvokeOnLoadFailed(errors.New("mpv could not open media"))
				} else if status.State == player.Playing &&
					status.DurationTicks > 0 &&
					status.PositionTicks >= status.DurationTicks-ticksPerSecond {
					p.InvokeOnReachedEnd()
				}
				p.setState(player.Stopped)
			}
		}
	}
}
