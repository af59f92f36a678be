package backend

import (
	"flag"
	"strconv"
)

var (
	SeekToCLIArg float64 = -1

	FlagPause    = flag.Bool("pause", false, "begin playback paused")
	FlagItemID   = flag.String("item", "", "id of the item to play")
	FlagSourceID = flag.String("media-source", "", "id of the media source of the item to play")
	FlagVersion  = flag.Bool("version", false, "print app version and exit")
	FlagHelp     = flag.Bool("help", false, "print command line options and exit")
)

func init() {
	flag.Func("seek-to", "seeks to the given position in seconds in the item being started", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		SeekToCLIArg = v
		return err
	})
}
