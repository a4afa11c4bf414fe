//go:build windows

// Package singleinstance keeps a second AnatomyDPS from tailing the same
// log and binding the same port in one user session.
package singleinstance

import (
	"errors"

	"golang.org/x/sys/windows"

	"github.com/graaaaa/anatomydps/internal/appinfo"
)

// AcquireLock takes the session-wide named mutex. lockPath is ignored on
// Windows. ok is false when another instance holds the mutex.
func AcquireLock(lockPath string) (release func(), ok bool, err error) {
	name, err := windows.UTF16PtrFromString(appinfo.MutexName)
	if err != nil {
		return nil, false, err
	}

	h, err := windows.CreateMutex(nil, false, name)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if h != 0 {
			windows.CloseHandle(h)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return func() { windows.CloseHandle(h) }, true, nil
}
