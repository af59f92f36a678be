package backend

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

type ServerConnection struct {
	Hostname    string
	AltHostname string
	Username    string
}

type ServerConfig struct {
	ServerConnection
	ID       uuid.UUID
	Nickname string
	Default  bool
}

type AppConfig struct {
	LastCheckedVersion  string
	LastLaunchedVersion string
	SkipSSLVerify       bool
	RequestTimeoutSecs  int
	MaxCacheSizeMB      int
}

type PlaybackConfig struct {
	SkipForwardSeconds          int
	SkipBackwardSeconds         int
	SavePlaybackPosition        bool
	SavePositionIntervalSeconds int
}

type TranscodingConfig struct {
	ForceDirectPlay     bool
	MaxBitrate          int
	PreferredAudioCodec string
}

type RemoteControlConfig struct {
	EnableMPRIS bool
}

type Config struct {
	Application   AppConfig
	Servers       []*ServerConfig
	Playback      PlaybackConfig
	Transcoding   TranscodingConfig
	RemoteControl RemoteControlConfig
}

func DefaultConfig(appVersionTag string) *Config {
	return &Config{
		Application: AppConfig{
			LastCheckedVersion:  appVersionTag,
			LastLaunchedVersion: "",
			SkipSSLVerify:       false,
			RequestTimeoutSecs:  30,
			MaxCacheSizeMB:      30,
		},
		Playback: PlaybackConfig{
			SkipForwardSeconds:          30,
			SkipBackwardSeconds:         15,
			SavePlaybackPosition:        true,
			SavePositionIntervalSeconds: 10,
		},
		Transcoding: TranscodingConfig{
			ForceDirectPlay: false,
			MaxBitrate:      0, // unlimited
		},
		RemoteControl: RemoteControlConfig{
			EnableMPRIS: true,
		},
	}
}

func ReadConfigFile(filepath, appVersionTag string) (*Config, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := DefaultConfig(appVersionTag)
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetDefaultServer returns the server marked default, or the first server,
// or nil when none are configured.
func (c *Config) GetDefaultServer() *ServerConfig {
	for _, s := range c.Servers {
		if s.Default {
			return s
		}
	}
	if len(c.Servers) > 0 {
		return c.Servers[0]
	}
	return nil
}

func (c *Config) SetDefaultServer(serverID uuid.UUID) {
	var found bool
	for _, s := range c.Servers {
		f := s.ID == serverID
		if f {
			found = true
		}
		s.Default = f
	}
	if !found && len(c.Servers) > 0 {
		c.Servers[0].Default = true
	}
}

var writeLock sync.Mutex

func (c *Config) WriteConfigFile(filepath string) error {
	if !writeLock.TryLock() {
		return nil // another write in progress
	}
	defer writeLock.Unlock()

	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	os.WriteFile(filepath, b, 0644)

	return nil
}
