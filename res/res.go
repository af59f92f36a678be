package res

const (
	AppName          = "meridian"
	DisplayName      = "Meridian"
	AppVersion       = "0.1.0"
	AppVersionTag    = "v" + AppVersion
	LatestReleaseURL = "https://github.com/meridian-player/meridian/releases/latest"
)
