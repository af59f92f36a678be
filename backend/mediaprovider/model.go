package mediaprovider

// Jellyfin-style tick resolution: 10,000,000 ticks per second (100ns units).
const TicksPerSecond int64 = 10_000_000

type ItemType int

const (
	ItemTypeMovie ItemType = iota
	ItemTypeEpisode
	ItemTypeAudio
)

// A single playable rendition of an Item (container/codec variant).
type MediaSource struct {
	ID         string
	Name       string
	Container  string
	VideoCodec string
	AudioCodec string
	Bitrate    int
	IsDefault  bool
}

// A playable library item with its available media sources.
type Item struct {
	ID           string
	Name         string
	SeriesName   string
	SeasonName   string
	Type         ItemType
	RunTimeTicks int64
	ProductionYr int
	Sources      []MediaSource
	ImageItemID  string
}

// DisplayTitle returns the title shown on now-playing surfaces:
// "Series - Episode" for episodes, the item name otherwise.
func (i *Item) DisplayTitle() string {
	if i.Type == ItemTypeEpisode && i.SeriesName != "" {
		return i.SeriesName + " - " + i.Name
	}
	return i.Name
}

func (i *Item) Copy() *Item {
	c := *i
	c.Sources = make([]MediaSource, len(i.Sources))
	copy(c.Sources, i.Sources)
	return &c
}

func SecondsToTicks(secs float64) int64 {
	return int64(secs * float64(TicksPerSecond))
}

func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / float64(TicksPerSecond)
}
