package backend

import (
	"encoding/base32"
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/events"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

const (
	dbusItemIDPrefix = "/Meridian/Item/"
	noItemObjectPath = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

	// one MPRIS microsecond is ten server ticks
	ticksPerMicrosecond = mediaprovider.TicksPerSecond / 1_000_000
)

var (
	_ types.OrgMprisMediaPlayer2Adapter       = (*MPRISHandler)(nil)
	_ types.OrgMprisMediaPlayer2PlayerAdapter = (*MPRISHandler)(nil)
)

var errNotSupported = errors.New("not supported")

// MPRISHandler exposes the playback session over the MPRIS D-Bus
// interface. It is the Linux realization of RemoteCommandHandler:
// registered commands gate what the desktop may invoke, and inbound
// D-Bus calls are forwarded to the registered command handler.
type MPRISHandler struct {
	// Function called if the player is requested to quit through MPRIS.
	// Should *asynchronously* start shutdown and return immediately.
	OnQuit func() error

	// Function called when the desktop requests a full stop.
	OnStop func() error

	// Skip amounts applied to MPRIS Next/Previous.
	SkipForwardTicks  int64
	SkipBackwardTicks int64

	connErr    error
	playerName string
	s          *server.Server
	evt        *events.EventHandler

	mutex      sync.Mutex
	info       NowPlayingInfo
	haveInfo   bool
	registered map[NowPlayableCommandType]bool
	handler    func(NowPlayableCommand)
}

func NewMPRISHandler(playerName string) *MPRISHandler {
	m := &MPRISHandler{
		playerName: playerName,
		connErr:    errors.New("not started"),
		registered: make(map[NowPlayableCommandType]bool),
	}
	m.s = server.NewServer(playerName, m, m)
	m.evt = events.NewEventHandler(m.s)
	return m
}

// Starts listening for MPRIS events.
func (m *MPRISHandler) Start() {
	m.connErr = nil
	go func() {
		// exits early with err if unable to establish D-Bus connection
		m.connErr = m.s.Listen()
	}()
}

// Stops listening for MPRIS events and releases any D-Bus resources.
func (m *MPRISHandler) Shutdown() {
	if m.connErr == nil {
		m.s.Stop()
		m.connErr = errors.New("stopped")
	}
}

// RemoteCommandHandler implementation

func (m *MPRISHandler) RegisterCommands(cmds []NowPlayableCommandType, handler func(NowPlayableCommand)) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.registered = make(map[NowPlayableCommandType]bool, len(cmds))
	for _, c := range cmds {
		m.registered[c] = true
	}
	m.handler = handler
	return nil
}

func (m *MPRISHandler) ClearCommands() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.registered = make(map[NowPlayableCommandType]bool)
	m.handler = nil
}

func (m *MPRISHandler) UpdateNowPlaying(info NowPlayingInfo) {
	m.mutex.Lock()
	prev, hadPrev := m.info, m.haveInfo
	m.info = info
	m.haveInfo = true
	m.mutex.Unlock()

	if m.connErr != nil {
		return
	}
	if !hadPrev || prev.ItemID != info.ItemID {
		m.evt.Player.OnTitle()
	}
	if !hadPrev || prev.Playing != info.Playing {
		m.evt.Player.OnPlayPause()
	}
	if hadPrev && prev.ItemID == info.ItemID && prev.PositionTicks != info.PositionTicks {
		m.evt.Player.OnSeek(ticksToMicroseconds(info.PositionTicks))
	}
}

// dispatch forwards an inbound D-Bus call to the registered handler,
// dropping commands that are not currently registered.
func (m *MPRISHandler) dispatch(cmd NowPlayableCommand) error {
	m.mutex.Lock()
	handler := m.handler
	allowed := m.registered[cmd.Type]
	m.mutex.Unlock()
	if handler == nil || !allowed {
		return errNotSupported
	}
	handler(cmd)
	return nil
}

func (m *MPRISHandler) commandRegistered(t NowPlayableCommandType) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.registered[t]
}

func (m *MPRISHandler) currentInfo() (NowPlayingInfo, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.info, m.haveInfo
}

// OrgMprisMediaPlayer2Adapter implementation

func (m *MPRISHandler) Identity() (string, error) {
	return m.playerName, nil
}

func (m *MPRISHandler) CanQuit() (bool, error) {
	return m.OnQuit != nil, nil
}

func (m *MPRISHandler) Quit() error {
	if m.OnQuit != nil {
		return m.OnQuit()
	}
	return errors.New("no quit handler added")
}

func (m *MPRISHandler) CanRaise() (bool, error) {
	return false, nil
}

func (m *MPRISHandler) Raise() error {
	return errNotSupported
}

func (m *MPRISHandler) HasTrackList() (bool, error) {
	return false, nil
}

func (m *MPRISHandler) SupportedUriSchemes() ([]string, error) {
	return nil, nil
}

func (m *MPRISHandler) SupportedMimeTypes() ([]string, error) {
	return nil, nil
}

// OrgMprisMediaPlayer2PlayerAdapter implementation

func (m *MPRISHandler) Next() error {
	return m.dispatch(NowPlayableCommand{Type: CommandSkipForward, AmountTicks: m.SkipForwardTicks})
}

func (m *MPRISHandler) Previous() error {
	return m.dispatch(NowPlayableCommand{Type: CommandSkipBackward, AmountTicks: m.SkipBackwardTicks})
}

func (m *MPRISHandler) Pause() error {
	return m.dispatch(NowPlayableCommand{Type: CommandPause})
}

func (m *MPRISHandler) PlayPause() error {
	return m.dispatch(NowPlayableCommand{Type: CommandTogglePlayPause})
}

func (m *MPRISHandler) Stop() error {
	if m.OnStop != nil {
		return m.OnStop()
	}
	return errNotSupported
}

func (m *MPRISHandler) Play() error {
	return m.dispatch(NowPlayableCommand{Type: CommandPlay})
}

func (m *MPRISHandler) Seek(offset types.Microseconds) error {
	info, ok := m.currentInfo()
	if !ok || info.DurationTicks <= 0 {
		return errNotSupported
	}
	// MPRIS seek command is relative to current position
	pos := info.PositionTicks + microsecondsToTicks(offset)
	return m.dispatch(NowPlayableCommand{Type: CommandSeek, Pct: float64(pos) / float64(info.DurationTicks)})
}

func (m *MPRISHandler) SetPosition(itemPath string, position types.Microseconds) error {
	info, ok := m.currentInfo()
	if !ok || info.DurationTicks <= 0 {
		return errNotSupported
	}
	if itemPath != dbusItemIDPrefix+encodeItemID(info.ItemID) {
		return nil
	}
	pct := float64(microsecondsToTicks(position)) / float64(info.DurationTicks)
	return m.dispatch(NowPlayableCommand{Type: CommandSeek, Pct: pct})
}

func (m *MPRISHandler) OpenUri(uri string) error {
	return errNotSupported
}

func (m *MPRISHandler) PlaybackStatus() (types.PlaybackStatus, error) {
	info, ok := m.currentInfo()
	if !ok {
		return types.PlaybackStatusStopped, nil
	}
	if info.Playing {
		return types.PlaybackStatusPlaying, nil
	}
	return types.PlaybackStatusPaused, nil
}

func (m *MPRISHandler) Rate() (float64, error) {
	if info, ok := m.currentInfo(); ok && info.Rate > 0 {
		return info.Rate, nil
	}
	return 1, nil
}

func (m *MPRISHandler) SetRate(rate float64) error {
	return m.dispatch(NowPlayableCommand{Type: CommandChangePlaybackRate, Rate: rate})
}

func (m *MPRISHandler) Metadata() (types.Metadata, error) {
	itemObjPath := noItemObjectPath
	info, ok := m.currentInfo()
	if ok && info.ItemID != "" {
		itemObjPath = dbusItemIDPrefix + encodeItemID(info.ItemID)
	}
	return types.Metadata{
		TrackId: dbus.ObjectPath(itemObjPath),
		Length:  ticksToMicroseconds(info.DurationTicks),
		Title:   info.Title,
	}, nil
}

func (m *MPRISHandler) Volume() (float64, error) {
	return 1, nil
}

func (m *MPRISHandler) SetVolume(v float64) error {
	return errNotSupported
}

func (m *MPRISHandler) Position() (int64, error) {
	info, _ := m.currentInfo()
	return int64(ticksToMicroseconds(info.PositionTicks)), nil
}

func (m *MPRISHandler) MinimumRate() (float64, error) {
	return 0.5, nil
}

func (m *MPRISHandler) MaximumRate() (float64, error) {
	return 2, nil
}

func (m *MPRISHandler) CanGoNext() (bool, error) {
	return m.commandRegistered(CommandSkipForward), nil
}

func (m *MPRISHandler) CanGoPrevious() (bool, error) {
	return m.commandRegistered(CommandSkipBackward), nil
}

func (m *MPRISHandler) CanPlay() (bool, error) {
	return m.commandRegistered(CommandPlay), nil
}

func (m *MPRISHandler) CanPause() (bool, error) {
	return m.commandRegistered(CommandPause), nil
}

func (m *MPRISHandler) CanSeek() (bool, error) {
	return m.commandRegistered(CommandSeek), nil
}

func (m *MPRISHandler) CanControl() (bool, error) {
	return true, nil
}

func microsecondsToTicks(m types.Microseconds) int64 {
	return int64(m) * ticksPerMicrosecond
}

func ticksToMicroseconds(t int64) types.Microseconds {
	return types.Microseconds(t / ticksPerMicrosecond)
}

func encodeItemID(id string) string {
	data := []byte(id)
	return base32.StdEncoding.WithPadding('0').EncodeToString(data)
}

var _ RemoteCommandHandler = (*MPRISHandler)(nil)
