//go:build windows

package backend

import (
	"sync/atomic"

	"golang.org/x/sys/windows"
)

const (
	esContinuous     = 0x80000000
	esSystemRequired = 0x00000001
)

var (
	sleepDisabled           atomic.Bool
	setThreadExecutionState = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadExecutionState")
)

// SetSystemSleepDisabled inhibits or re-allows system sleep. Calls that do
// not change the current setting are no-ops.
func SetSystemSleepDisabled(disable bool) {
	if sleepDisabled.Swap(disable) == disable {
		return
	}
	flags := uintptr(esContinuous)
	if disable {
		flags |= esSystemRequired
	}
	setThreadExecutionState.Call(flags)
}
