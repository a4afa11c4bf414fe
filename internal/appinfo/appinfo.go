// Package appinfo provides application identity constants.
// These are used across packages for consistent naming.
package appinfo

const (
	// AppName is the display name of the application.
	AppName = "AnatomyDPS"

	// DirName is the directory name used for storing application data.
	// Location: %LOCALAPPDATA%/anatomydps/ (Windows) or ~/.config/anatomydps/ (other)
	DirName = "anatomydps"

	// MutexName is the Windows mutex name for single instance control.
	// "Local\" prefix scopes the mutex to the current user session.
	MutexName = "Local\\anatomydps"

	// LockFileName is the lock file name for single instance control.
	LockFileName = "anatomydps.lock"

	// ConfigFileName is the configuration file name.
	ConfigFileName = "config.json"

	// AliasDatabaseFileName is the SQLite database holding player aliases.
	AliasDatabaseFileName = "aliases.sqlite"
)
