package backend

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/meridian-player/meridian/backend/mediaprovider"
	"github.com/meridian-player/meridian/backend/player"
	"github.com/meridian-player/meridian/backend/util"
)

const positionPollInterval = 250 * time.Millisecond

// MediaServer is the slice of the remote server the coordinator needs:
// stream URL resolution and playback progress reporting.
type MediaServer interface {
	GetItemStreamURL(itemID, mediaSourceID string) (string, error)
	ReportPlaybackStart(itemID string) error
	ReportPlaybackStopped(itemID string, positionTicks int64) error
}

// playbackSession is the per-session bookkeeping: the item being played,
// the selected source, and the cancel func for an in-flight load.
type playbackSession struct {
	generation       uint64
	item             *mediaprovider.Item
	selectedSourceID string
	cancelLoad       context.CancelFunc
	startReported    bool
}

// PlaybackCoordinator is the single entry point for all playback intents:
// user gestures, player callbacks, OS remote commands, and interruption
// notices. Every event is funneled through one ordered queue and applied
// to the state machine one at a time, so the machine itself needs no locks.
type PlaybackCoordinator struct {
	ctx    context.Context
	server MediaServer
	player player.Player
	queue  *eventQueue

	pollMu        sync.Mutex
	cancelPollPos context.CancelFunc

	playTimeStopwatch util.Stopwatch
	callbacksDisabled bool

	// mutated only by the event loop; snapshotMu guards reads from outside it
	snapshotMu sync.RWMutex
	snapshot   PlaybackState
	session    *playbackSession
	machine    *playbackStateMachine

	generation uint64 // bumped on every session start and teardown

	// registered callbacks, invoked from the event loop
	onStateChange       []func(PlaybackState)
	onSessionStart      []func(*mediaprovider.Item)
	onSessionEnd        []func()
	onInterrupted       []func()
	onInterruptionEnded []func()
	onNotice            []func(error)
}

func NewPlaybackCoordinator(ctx context.Context, server MediaServer, p player.Player) *PlaybackCoordinator {
	c := &PlaybackCoordinator{
		ctx:    ctx,
		server: server,
		player: p,
		queue:  newEventQueue(),
	}
	c.snapshot.Phase = PhaseIdle
	go c.eventLoop()
	return c
}

// registerPlayerCallbacks binds the shared player's event callbacks to the
// session identified by gen. Each session start re-registers, so a player
// event originating from a torn-down session's media still carries that
// session's token and is discarded by the staleness check, even if it is
// delivered after a new session has begun.
func (c *PlaybackCoordinator) registerPlayerCallbacks(gen uint64) {
	p := c.player
	p.OnSourceReady(func(durationTicks int64) {
		c.queue.Enqueue(Intent{Type: intentSourceReady, Ticks: durationTicks, generation: gen})
	})
	p.OnLoadFailed(func(err error) {
		c.queue.Enqueue(Intent{Type: intentLoadFailed, Err: err, generation: gen})
	})
	p.OnPlayerError(func(err error) {
		c.queue.Enqueue(Intent{Type: intentPlayerError, Err: err, generation: gen})
	})
	p.OnReachedEnd(func() {
		c.queue.Enqueue(Intent{Type: intentReachedEnd, generation: gen})
	})
	p.OnPlaying(func() {
		c.playTimeStopwatch.Start()
		c.startPollPosition(gen)
	})
	p.OnPaused(func() {
		c.playTimeStopwatch.Stop()
		c.stopPollPosition()
	})
	p.OnStopped(func() {
		c.playTimeStopwatch.Stop()
		c.stopPollPosition()
	})
	p.OnSeek(func() {
		c.queue.Enqueue(Intent{Type: intentPositionUpdate, Ticks: p.GetStatus().PositionTicks, generation: gen})
	})
}

// enqueueNotice stamps an OS notice with the generation current at enqueue
// time; the loop discards it if a teardown or new session happened before
// it was drained.
func (c *PlaybackCoordinator) enqueueNotice(in Intent) {
	c.snapshotMu.RLock()
	in.generation = c.generation
	c.snapshotMu.RUnlock()
	c.queue.Enqueue(in)
}

// Submit delivers an intent to the serialized event queue and returns the
// transition result: nil for acknowledged, ErrNoActiveSession or
// *InvalidTransitionError for rejections. Rejections never crash the
// engine; they are also logged.
func (c *PlaybackCoordinator) Submit(in Intent) error {
	select {
	case err := <-c.queue.EnqueueWait(in):
		return err
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// StartSession tears down any active session, resolves which media source
// to play (requestedSourceID may be empty to use the item default), and
// begins loading. Exactly one session is active at a time; the previous
// session's player and audio focus are released before the new state
// machine is constructed.
func (c *PlaybackCoordinator) StartSession(item *mediaprovider.Item, requestedSourceID string) error {
	return c.StartSessionAt(item, requestedSourceID, 0)
}

// StartSessionAt is StartSession beginning playback at startTicks, used to
// resume a previously interrupted item.
func (c *PlaybackCoordinator) StartSessionAt(item *mediaprovider.Item, requestedSourceID string, startTicks int64) error {
	reply := make(chan error, 1)
	ok := c.queue.add(submission{
		reply: reply,
		fn: func() error {
			return c.doStartSession(item.Copy(), requestedSourceID, startTicks)
		},
	})
	if !ok {
		return ErrNoActiveSession
	}
	select {
	case err := <-reply:
		return err
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Stop ends the active session, releasing the player and audio focus.
func (c *PlaybackCoordinator) Stop() error {
	return c.Submit(Intent{Type: IntentStop})
}

// Shutdown tears down the active session and stops the event loop.
func (c *PlaybackCoordinator) Shutdown() {
	c.Stop()
	c.queue.Close()
}

// Should only be called before quitting.
// Disables playback state callbacks being sent.
func (c *PlaybackCoordinator) DisableCallbacks() {
	c.callbacksDisabled = true
}

// CurrentState returns an immutable snapshot of the playback state.
func (c *PlaybackCoordinator) CurrentState() PlaybackState {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.snapshot
}

// NowPlaying returns a copy of the item in the active session, or nil.
func (c *PlaybackCoordinator) NowPlaying() *mediaprovider.Item {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	if c.session == nil {
		return nil
	}
	return c.session.item.Copy()
}

// CurrentMediaSources returns the active item's source candidate set,
// for UI-driven source switch menus.
func (c *PlaybackCoordinator) CurrentMediaSources() []mediaprovider.MediaSource {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	if c.session == nil {
		return nil
	}
	sources := make([]mediaprovider.MediaSource, len(c.session.item.Sources))
	copy(sources, c.session.item.Sources)
	return sources
}

// PlayTime returns the accumulated wall-clock time the active session
// has actually spent playing, excluding pauses and scrubs.
func (c *PlaybackCoordinator) PlayTime() time.Duration {
	return c.playTimeStopwatch.Elapsed()
}

// SelectedMediaSourceID returns the id of the source chosen for the
// active session, or "" if no session is active.
func (c *PlaybackCoordinator) SelectedMediaSourceID() string {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.selectedSourceID
}

// Registers a callback invoked with a state snapshot after every applied transition.
func (c *PlaybackCoordinator) OnStateChange(cb func(PlaybackState)) {
	c.onStateChange = append(c.onStateChange, cb)
}

// Registers a callback invoked when a new session begins loading.
func (c *PlaybackCoordinator) OnSessionStart(cb func(*mediaprovider.Item)) {
	c.onSessionStart = append(c.onSessionStart, cb)
}

// Registers a callback invoked after a session has been torn down.
func (c *PlaybackCoordinator) OnSessionEnd(cb func()) {
	c.onSessionEnd = append(c.onSessionEnd, cb)
}

// Registers a callback invoked after an OS interruption notice has forced a pause.
func (c *PlaybackCoordinator) OnInterrupted(cb func()) {
	c.onInterrupted = append(c.onInterrupted, cb)
}

// Registers a callback invoked when the OS reports the interruption has ended.
func (c *PlaybackCoordinator) OnInterruptionEnded(cb func()) {
	c.onInterruptionEnded = append(c.onInterruptionEnded, cb)
}

// Registers a callback for non-fatal notices (audio session failures,
// rejected player commands). Notices never change the playback phase.
func (c *PlaybackCoordinator) OnNotice(cb func(error)) {
	c.onNotice = append(c.onNotice, cb)
}

// NotifyInterrupted places an OS "interruption began" notice on the event
// queue. The forced pause is applied before the interruption is surfaced.
func (c *PlaybackCoordinator) NotifyInterrupted() {
	c.enqueueNotice(Intent{Type: intentInterrupted})
}

// NotifyInterruptionEnded places an OS "interruption ended" notice on the
// event queue.
func (c *PlaybackCoordinator) NotifyInterruptionEnded() {
	c.enqueueNotice(Intent{Type: intentInterruptionEnded})
}

func (c *PlaybackCoordinator) eventLoop() {
	for {
		select {
		case <-c.ctx.Done():
			c.queue.Close()
			// drain remaining submissions so waiting Submit callers unblock
			for s := range c.queue.C() {
				if s.reply != nil {
					s.reply <- c.ctx.Err()
				}
			}
			return
		case s, ok := <-c.queue.C():
			if !ok {
				return
			}
			var err error
			if s.fn != nil {
				err = s.fn()
			} else {
				err = c.handleIntent(s.intent)
			}
			if s.reply != nil {
				s.reply <- err
			}
		}
	}
}

func (c *PlaybackCoordinator) handleIntent(in Intent) error {
	// stale player/OS events from a torn-down session are discarded
	if in.generation != 0 && in.generation != c.currentGeneration() {
		return nil
	}

	switch in.Type {
	case IntentStop:
		c.teardownSession()
		return nil
	case intentInterrupted:
		return c.handleInterrupted()
	case intentInterruptionEnded:
		c.invokeCallbacks(c.onInterruptionEnded)
		return nil
	}

	if c.machine == nil {
		log.Printf("rejected %s intent: no active session", in.Type)
		return ErrNoActiveSession
	}

	prev := c.machine.state
	if err := c.machine.apply(in); err != nil {
		var tErr *InvalidTransitionError
		if errors.As(err, &tErr) {
			log.Printf("rejected %s intent in phase %s", in.Type, prev.Phase)
		}
		return err
	}
	c.applyPlayerEffects(in, prev, c.machine.state)
	c.publishState()
	return nil
}

// applyPlayerEffects drives the opaque player to match the state the
// machine just entered, and reports session begin/end to the server.
func (c *PlaybackCoordinator) applyPlayerEffects(in Intent, prev, cur PlaybackState) {
	switch {
	case prev.Phase != PhasePlaying && cur.Phase == PhasePlaying:
		if err := c.player.Play(); err != nil {
			c.notice(&PlaybackError{Cause: err})
			return
		}
		if !c.session.startReported {
			c.session.startReported = true
			itemID := c.session.item.ID
			go c.server.ReportPlaybackStart(itemID)
		}
	case prev.Phase == PhasePlaying && cur.Phase == PhasePaused:
		if err := c.player.Pause(); err != nil {
			c.notice(&PlaybackError{Cause: err})
		}
	}

	switch in.Type {
	case IntentSeekTicks, IntentSeekPercent, IntentSkipForward, IntentSkipBackward, IntentScrubEnd:
		if err := c.player.SeekTicks(cur.PositionTicks); err != nil {
			c.notice(&PlaybackError{Cause: err})
		}
	case IntentChangeRate:
		if err := c.player.SetRate(cur.Rate); err != nil {
			c.notice(&PlaybackError{Cause: err})
		}
	case IntentScrubBegin:
		// freeze the driving clock while the user is dragging
		c.stopPollPosition()
	case intentReachedEnd:
		c.reportStopped(cur.PositionTicks)
	case intentPlayerError, intentLoadFailed:
		c.player.Stop()
		c.reportStopped(cur.PositionTicks)
	}
	if in.Type == IntentScrubEnd && cur.Phase == PhasePlaying {
		c.startPollPosition(c.session.generation)
	}
}

// handleInterrupted forces a pause before the interruption is surfaced,
// so UI and OS stay consistent even if reactivation later fails.
func (c *PlaybackCoordinator) handleInterrupted() error {
	if c.machine != nil && c.machine.state.Phase == PhasePlaying {
		if err := c.machine.apply(Intent{Type: IntentPause}); err == nil {
			c.player.Pause()
			c.publishState()
		}
	}
	c.invokeCallbacks(c.onInterrupted)
	return nil
}

func (c *PlaybackCoordinator) doStartSession(item *mediaprovider.Item, requestedSourceID string, startTicks int64) error {
	c.teardownSession()

	var sourceID string
	var err error
	if requestedSourceID == "" {
		sourceID, err = DefaultMediaSource(item.Sources)
	} else {
		sourceID, err = SelectMediaSource(item.Sources, requestedSourceID)
	}
	if err != nil {
		return err
	}
	if startTicks < 0 {
		startTicks = 0
	}

	loadCtx, cancelLoad := context.WithCancel(c.ctx)
	c.machine = newPlaybackStateMachine(sourceID)
	if err := c.machine.beginLoading(); err != nil {
		log.Printf("error entering loading phase: %v", err)
	}
	c.machine.state.PositionTicks = startTicks

	c.snapshotMu.Lock()
	c.generation++
	gen := c.generation
	c.session = &playbackSession{
		generation:       gen,
		item:             item,
		selectedSourceID: sourceID,
		cancelLoad:       cancelLoad,
	}
	c.snapshotMu.Unlock()
	c.registerPlayerCallbacks(gen)

	for _, cb := range c.onSessionStart {
		cb(item)
	}
	c.publishState()

	// URL resolution is network-backed; run it off the event loop and
	// deliver the outcome as an ordinary gen-stamped event.
	go func() {
		url, err := c.server.GetItemStreamURL(item.ID, sourceID)
		if loadCtx.Err() != nil {
			return // session torn down while resolving
		}
		if err == nil {
			err = c.player.Load(url, startTicks)
		}
		if err != nil {
			c.queue.Enqueue(Intent{Type: intentLoadFailed, Err: err, generation: gen})
		}
		// on success the player emits sourceReady via its callback
	}()
	return nil
}

// teardownSession releases everything owned by the active session, in
// order: cancel in-flight load, stop the player, then let the bridge
// release audio focus and remote-command registrations via onSessionEnd.
func (c *PlaybackCoordinator) teardownSession() {
	if c.session == nil {
		return
	}
	pos := c.machine.state.PositionTicks
	wasTerminal := c.machine.state.Phase.Terminal()
	if playDur := c.playTimeStopwatch.Elapsed(); playDur > 0 {
		log.Printf("session for %s ended after %s of playback", c.session.item.ID, playDur.Round(time.Second))
	}

	c.session.cancelLoad()
	c.stopPollPosition()
	c.playTimeStopwatch.Reset()
	c.player.Stop()
	if !wasTerminal {
		c.reportStopped(pos)
	}

	c.snapshotMu.Lock()
	c.generation++
	c.session = nil
	c.snapshotMu.Unlock()
	c.machine = nil

	c.invokeCallbacks(c.onSessionEnd)
	c.publishState()
}

func (c *PlaybackCoordinator) reportStopped(positionTicks int64) {
	if c.session == nil || !c.session.startReported {
		return
	}
	c.session.startReported = false
	itemID := c.session.item.ID
	go c.server.ReportPlaybackStopped(itemID, positionTicks)
}

func (c *PlaybackCoordinator) currentGeneration() uint64 {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.generation
}

func (c *PlaybackCoordinator) publishState() {
	var snapshot PlaybackState
	if c.machine != nil {
		snapshot = c.machine.state
	} else {
		snapshot = PlaybackState{Phase: PhaseIdle}
	}
	c.snapshotMu.Lock()
	c.snapshot = snapshot
	c.snapshotMu.Unlock()

	if c.callbacksDisabled {
		return
	}
	for _, cb := range c.onStateChange {
		cb(snapshot)
	}
}

func (c *PlaybackCoordinator) notice(err error) {
	log.Printf("playback notice: %v", err)
	if c.callbacksDisabled {
		return
	}
	for _, cb := range c.onNotice {
		cb(err)
	}
}

func (c *PlaybackCoordinator) invokeCallbacks(cbs []func()) {
	if c.callbacksDisabled {
		return
	}
	for _, cb := range cbs {
		cb()
	}
}

func (c *PlaybackCoordinator) startPollPosition(gen uint64) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if c.cancelPollPos != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelPollPos = cancel
	pollingTick := time.NewTicker(positionPollInterval)

	go func() {
		for {
			select {
			case <-ctx.Done():
				pollingTick.Stop()
				return
			case <-pollingTick.C:
				c.queue.Enqueue(Intent{
					Type:       intentPositionUpdate,
					Ticks:      c.player.GetStatus().PositionTicks,
					generation: gen,
				})
			}
		}
	}()
}

func (c *PlaybackCoordinator) stopPollPosition() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if c.cancelPollPos != nil {
		c.cancelPollPos()
		c.cancelPollPos = nil
	}
}
