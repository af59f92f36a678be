package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"reflect"
	"time"

	"github.com/20after4/configdir"

	"github.com/meridian-player/meridian/backend/mediaprovider"
	"github.com/meridian-player/meridian/backend/player/mpv"
	"github.com/meridian-player/meridian/backend/util"
)

const (
	configFile        = "config.toml"
	sessionSeedsDir   = "sessions"
	savedPositionFile = "saved_position.json"
)

type App struct {
	Config              *Config
	ServerManager       *ServerManager
	SeedStore           *SessionSeedStore
	PlaybackCoordinator *PlaybackCoordinator
	NowPlayable         *NowPlayableBridge
	LocalPlayer         *mpv.Player
	UpdateChecker       UpdateChecker
	MPRISHandler        *MPRISHandler

	// Callback to be set in main.
	OnExit func()

	appName       string
	appVersionTag string
	configDir     string
	cacheDir      string

	isFirstLaunch bool // set by config file reader
	bgrndCtx      context.Context
	cancel        context.CancelFunc

	lastWrittenCfg Config
}

func (a *App) VersionTag() string {
	return a.appVersionTag
}

func StartupApp(appName, displayAppName, appVersionTag, latestReleaseURL string) (*App, error) {
	confDir := configdir.LocalConfig(appName)
	cacheDir := configdir.LocalCache(appName)
	// ensure config and cache dirs exist
	configdir.MakePath(confDir)
	configdir.MakePath(cacheDir)

	log.Printf("Starting %s...", appName)
	log.Printf("Using config dir: %s", confDir)
	log.Printf("Using cache dir: %s", cacheDir)

	a := &App{
		appName:       appName,
		appVersionTag: appVersionTag,
		configDir:     confDir,
		cacheDir:      cacheDir,
	}
	a.bgrndCtx, a.cancel = context.WithCancel(context.Background())
	a.readConfig()
	a.startConfigWriter(a.bgrndCtx)

	a.UpdateChecker = NewUpdateChecker(appVersionTag, latestReleaseURL, &a.Config.Application.LastCheckedVersion)
	a.UpdateChecker.Start(a.bgrndCtx, 24*time.Hour)

	if err := a.initMPV(); err != nil {
		return nil, err
	}

	a.SeedStore = NewSessionSeedStore(path.Join(confDir, sessionSeedsDir))
	a.ServerManager = NewServerManager(appName, appVersionTag, a.Config, a.SeedStore)
	a.PlaybackCoordinator = NewPlaybackCoordinator(a.bgrndCtx, a.ServerManager, a.LocalPlayer)
	a.PlaybackCoordinator.OnStateChange(func(s PlaybackState) {
		SetSystemSleepDisabled(s.Phase == PhasePlaying)
	})
	a.startPositionSaver(a.bgrndCtx)

	// OS media center integration
	a.setupMPRIS(displayAppName)

	a.Config.Application.LastLaunchedVersion = appVersionTag
	return a, nil
}

func (a *App) IsFirstLaunch() bool {
	return a.isFirstLaunch
}

func (a *App) readConfig() {
	cfgPath := a.configFilePath()
	var cfgExists bool
	if _, err := os.Stat(cfgPath); err == nil {
		cfgExists = true
	}
	a.isFirstLaunch = !cfgExists
	cfg, err := ReadConfigFile(cfgPath, a.appVersionTag)
	if err != nil {
		log.Printf("Error reading app config file: %v", err)
		cfg = DefaultConfig(a.appVersionTag)
		if cfgExists {
			backupCfgName := fmt.Sprintf("%s.bak", configFile)
			log.Printf("Config file may be malformed: copying to %s", backupCfgName)
			_ = util.CopyFile(cfgPath, path.Join(a.configDir, backupCfgName))
		}
	}
	a.Config = cfg
}

// periodically save config file so abnormal exit won't lose settings
func (a *App) startConfigWriter(ctx context.Context) {
	tick := time.NewTicker(2 * time.Minute)
	go func() {
		for {
			select {
			case <-ctx.Done():
				tick.Stop()
				return
			case <-tick.C:
				if !reflect.DeepEqual(&a.lastWrittenCfg, a.Config) {
					a.Config.WriteConfigFile(a.configFilePath())
					a.lastWrittenCfg = *a.Config
				}
			}
		}
	}()
}

// periodically flush the playback position while playing so an abnormal
// exit can still offer resume
func (a *App) startPositionSaver(ctx context.Context) {
	interval := time.Duration(clamp(a.Config.Playback.SavePositionIntervalSeconds, 5, 600)) * time.Second
	tick := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				tick.Stop()
				return
			case <-tick.C:
				if !a.Config.Playback.SavePlaybackPosition || a.ServerManager.Server == nil {
					continue
				}
				if err := SavePlaybackPosition(a.ServerManager.ServerID.String(), a.PlaybackCoordinator, path.Join(a.configDir, savedPositionFile)); err != nil {
					log.Printf("error saving playback position: %v", err)
				}
			}
		}
	}()
}

func (a *App) initMPV() error {
	p := mpv.NewWithClientName(a.appName)
	cacheMB := clamp(a.Config.Application.MaxCacheSizeMB, 10, 500)
	if err := p.Init(cacheMB); err != nil {
		return fmt.Errorf("failed to initialize mpv player: %s", err.Error())
	}
	a.LocalPlayer = p
	return nil
}

func (a *App) setupMPRIS(mprisAppName string) {
	a.MPRISHandler = NewMPRISHandler(mprisAppName)
	a.MPRISHandler.SkipForwardTicks = mediaprovider.SecondsToTicks(float64(a.Config.Playback.SkipForwardSeconds))
	a.MPRISHandler.SkipBackwardTicks = mediaprovider.SecondsToTicks(float64(a.Config.Playback.SkipBackwardSeconds))
	a.MPRISHandler.OnStop = a.PlaybackCoordinator.Stop
	a.MPRISHandler.OnQuit = func() error {
		if a.OnExit == nil {
			return fmt.Errorf("no quit handler registered")
		}
		go func() {
			time.Sleep(10 * time.Millisecond)
			a.OnExit()
		}()
		return nil
	}
	a.NowPlayable = NewNowPlayableBridge(a.PlaybackCoordinator, a.MPRISHandler, &NullAudioSession{})
	if a.Config.RemoteControl.EnableMPRIS {
		a.MPRISHandler.Start()
	}
}

// LoginToDefaultServer connects to the default configured server using the
// keyring credential.
func (a *App) LoginToDefaultServer() error {
	serverCfg := a.Config.GetDefaultServer()
	if serverCfg == nil {
		return ErrNoServers
	}
	pass, err := a.ServerManager.GetServerPassword(serverCfg.ID)
	if err != nil {
		return fmt.Errorf("error reading keyring credentials: %v", err)
	}
	return a.ServerManager.ConnectToServer(serverCfg, pass)
}

// RestoreSession connects using the most recently updated session seed.
func (a *App) RestoreSession() error {
	return a.ServerManager.TryAutoConnect()
}

// ResumeSavedPlayback starts a session for the item recorded at last
// shutdown, at its saved position.
func (a *App) ResumeSavedPlayback(item *mediaprovider.Item) error {
	saved, err := LoadPlaybackPosition(path.Join(a.configDir, savedPositionFile), a.ServerManager)
	if err != nil {
		return err
	}
	if saved.ItemID != item.ID {
		return fmt.Errorf("saved position is for a different item")
	}
	return a.PlaybackCoordinator.StartSessionAt(item, saved.SourceID, saved.PositionTicks)
}

func (a *App) Shutdown() {
	a.MPRISHandler.Shutdown()
	a.PlaybackCoordinator.DisableCallbacks()
	if a.Config.Playback.SavePlaybackPosition {
		SavePlaybackPosition(a.ServerManager.ServerID.String(), a.PlaybackCoordinator, path.Join(a.configDir, savedPositionFile))
	}
	a.PlaybackCoordinator.Shutdown() // tears down the session and reports stop
	a.cancel()
	a.LocalPlayer.Destroy()
	a.Config.WriteConfigFile(a.configFilePath())
}

func (a *App) SaveConfigFile() {
	a.Config.WriteConfigFile(a.configFilePath())
	a.lastWrittenCfg = *a.Config
}

func (a *App) configFilePath() string {
	return path.Join(a.configDir, configFile)
}

func clamp(i, min, max int) int {
	if i < min {
		i = min
	} else if i > max {
		i = max
	}
	return i
}
