package backend

// IntentType enumerates every event the coordinator accepts: user gestures,
// inbound OS remote commands, player callbacks, and interruption notices.
// All of them travel through the same serialized queue.
type IntentType int

const (
	IntentPlay IntentType = iota
	IntentPause
	IntentTogglePlayPause
	IntentSkipForward  // Ticks: skip amount
	IntentSkipBackward // Ticks: skip amount
	IntentSeekTicks    // Ticks: absolute target
	IntentSeekPercent  // Pct: absolute target [0..1]
	IntentChangeRate   // Rate
	IntentScrubBegin
	IntentScrubMove // Pct
	IntentScrubEnd  // Pct
	IntentStop

	// session lifecycle (issued by the coordinator itself)
	intentLoadRequested

	// player-originated
	intentSourceReady // Ticks: duration
	intentLoadFailed  // Err
	intentPlayerError // Err
	intentReachedEnd
	intentPositionUpdate // Ticks: current position

	// OS audio-focus notices
	intentInterrupted
	intentInterruptionEnded
)

func (t IntentType) String() string {
	switch t {
	case IntentPlay:
		return "play"
	case IntentPause:
		return "pause"
	case IntentTogglePlayPause:
		return "togglePlayPause"
	case IntentSkipForward:
		return "skipForward"
	case IntentSkipBackward:
		return "skipBackward"
	case IntentSeekTicks:
		return "seek"
	case IntentSeekPercent:
		return "seekPercent"
	case IntentChangeRate:
		return "changeRate"
	case IntentScrubBegin:
		return "scrubBegin"
	case IntentScrubMove:
		return "scrubMove"
	case IntentScrubEnd:
		return "scrubEnd"
	case IntentStop:
		return "stop"
	case intentLoadRequested:
		return "loadRequested"
	case intentSourceReady:
		return "sourceReady"
	case intentLoadFailed:
		return "loadFailed"
	case intentPlayerError:
		return "playerError"
	case intentReachedEnd:
		return "reachedEnd"
	case intentPositionUpdate:
		return "positionUpdate"
	case intentInterrupted:
		return "interrupted"
	case intentInterruptionEnded:
		return "interruptionEnded"
	}
	return "unknown"
}

// Intent is a single inbound event. Only the fields relevant to the
// Type are consulted.
type Intent struct {
	Type  IntentType
	Ticks int64
	Pct   float64
	Rate  float64
	Err   error

	// generation stamps player-originated intents so completions from a
	// torn-down session are discarded instead of applied to the current one.
	generation uint64
}

func SkipForward(amountTicks int64) Intent {
	return Intent{Type: IntentSkipForward, Ticks: amountTicks}
}

func SkipBackward(amountTicks int64) Intent {
	return Intent{Type: IntentSkipBackward, Ticks: amountTicks}
}

func SeekTicks(ticks int64) Intent {
	return Intent{Type: IntentSeekTicks, Ticks: ticks}
}

func SeekPercent(pct float64) Intent {
	return Intent{Type: IntentSeekPercent, Pct: pct}
}

func ChangeRate(rate float64) Intent {
	return Intent{Type: IntentChangeRate, Rate: rate}
}
