//go:build !windows

package backend

func SetSystemSleepDisabled(disable bool) {
	// no inhibitor wired on this platform
}
