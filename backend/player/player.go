package player

// The player lifecycle state (Stopped, Paused, or Playing).
type State int

const (
	Stopped State = iota
	Paused
	Playing
)

// The current status of the player.
type Status struct {
	State         State
	PositionTicks int64
	DurationTicks int64
}

// Player is the opaque playback capability driven by the coordinator.
// Load is asynchronous: completion is reported through OnSourceReady or
// OnLoadFailed, never inline.
type Player interface {
	Load(url string, startTicks int64) error
	Play() error
	Pause() error
	Stop() error

	SeekTicks(ticks int64) error
	SetRate(rate float64) error
	GetStatus() Status

	Destroy()

	// Event API
	OnSourceReady(func(durationTicks int64))
	OnLoadFailed(func(err error))
	OnPlaying(func())
	OnPaused(func())
	OnStopped(func())
	OnSeek(func())
	OnPlayerError(func(err error))
	OnReachedEnd(func())
}

// BaseCallbackImpl provides callback registration and invocation for
// Player implementations to embed.
type BaseCallbackImpl struct {
	onSourceReady func(int64)
	onLoadFailed  func(error)
	onPlaying     func()
	onPaused      func()
	onStopped     func()
	onSeek        func()
	onPlayerError func(error)
	onReachedEnd  func()
}

// Sets a callback invoked when an asynchronous Load completes successfully.
// Invoked with the duration of the loaded media in ticks.
func (b *BaseCallbackImpl) OnSourceReady(cb func(durationTicks int64)) {
	b.onSourceReady = cb
}

// Sets a callback invoked when an asynchronous Load fails.
func (b *BaseCallbackImpl) OnLoadFailed(cb func(err error)) {
	b.onLoadFailed = cb
}

// Sets a callback invoked when the player transitions to the Playing state.
func (b *BaseCallbackImpl) OnPlaying(cb func()) {
	b.onPlaying = cb
}

// Sets a callback invoked when the player transitions to the Paused state.
func (b *BaseCallbackImpl) OnPaused(cb func()) {
	b.onPaused = cb
}

// Sets a callback invoked when the player transitions to the Stopped state.
func (b *BaseCallbackImpl) OnStopped(cb func()) {
	b.onStopped = cb
}

// Sets a callback invoked whenever a seek completes.
func (b *BaseCallbackImpl) OnSeek(cb func()) {
	b.onSeek = cb
}

// Sets a callback invoked when the player reports an unrecoverable error
// during playback.
func (b *BaseCallbackImpl) OnPlayerError(cb func(err error)) {
	b.onPlayerError = cb
}

// Sets a callback invoked when playback reaches the end of the media.
func (b *BaseCallbackImpl) OnReachedEnd(cb func()) {
	b.onReachedEnd = cb
}

func (b *BaseCallbackImpl) InvokeOnSourceReady(durationTicks int64) {
	if b.onSourceReady != nil {
		b.onSourceReady(durationTicks)
	}
}

func (b *BaseCallbackImpl) InvokeOnLoadFailed(err error) {
	if b.onLoadFailed != nil {
		b.onLoadFailed(err)
	}
}

func (b *BaseCallbackImpl) InvokeOnPlaying() {
	if b.onPlaying != nil {
		b.onPlaying()
	}
}

func (b *BaseCallbackImpl) InvokeOnPaused() {
	if b.onPaused != nil {
		b.onPaused()
	}
}

func (b *BaseCallbackImpl) InvokeOnStopped() {
	if b.onStopped != nil {
		b.onStopped()
	}
}

func (b *BaseCallbackImpl) InvokeOnSeek() {
	if b.onSeek != nil {
		b.onSeek()
	}
}

func (b *BaseCallbackImpl) InvokeOnPlayerError(err error) {
	if b.onPlayerError != nil {
		b.onPlayerError(err)
	}
}

func (b *BaseCallbackImpl) InvokeOnReachedEnd() {
	if b.onReachedEnd != nil {
		b.onReachedEnd()
	}
}
