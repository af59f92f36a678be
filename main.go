package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/meridian-player/meridian/backend"
	"github.com/meridian-player/meridian/backend/mediaprovider"
	"github.com/meridian-player/meridian/res"
)

func main() {
	flag.Parse()
	if *backend.FlagVersion {
		fmt.Println(res.AppVersion)
		return
	}
	if *backend.FlagHelp {
		flag.Usage()
		return
	}

	myApp, err := backend.StartupApp(res.AppName, res.DisplayName, res.AppVersionTag, res.LatestReleaseURL)
	if err != nil {
		log.Fatalf("fatal startup error: %v", err.Error())
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	myApp.OnExit = func() {
		shutdown <- os.Interrupt
	}

	if err := myApp.RestoreSession(); err != nil {
		log.Printf("could not restore previous session: %v", err)
		if err := myApp.LoginToDefaultServer(); err != nil {
			log.Fatalf("fatal login error: %v", err.Error())
		}
	}

	if *backend.FlagItemID != "" {
		if err := startRequestedItem(myApp); err != nil {
			log.Printf("error starting playback: %v", err)
		}
	}

	<-shutdown
	log.Println("Running shutdown tasks...")
	myApp.Shutdown()
}

func startRequestedItem(myApp *backend.App) error {
	item, err := myApp.ServerManager.FetchItem(*backend.FlagItemID)
	if err != nil {
		return err
	}

	// state callbacks run on the coordinator's event loop, so follow-up
	// intents must be submitted from a separate goroutine
	pc := myApp.PlaybackCoordinator
	var started bool
	pc.OnStateChange(func(s backend.PlaybackState) {
		if s.Phase != backend.PhaseReady || started {
			return
		}
		started = true
		go func() {
			if backend.SeekToCLIArg >= 0 {
				ticks := mediaprovider.SecondsToTicks(backend.SeekToCLIArg)
				if err := pc.Submit(backend.SeekTicks(ticks)); err != nil {
					log.Printf("error seeking: %v", err)
				}
			}
			if !*backend.FlagPause {
				if err := pc.Submit(backend.Intent{Type: backend.IntentPlay}); err != nil {
					log.Printf("error starting playback: %v", err)
				}
			}
		}()
	})

	if err := myApp.ResumeSavedPlayback(item); err == nil {
		return nil
	}
	return pc.StartSession(item, *backend.FlagSourceID)
}
