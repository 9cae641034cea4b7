package fsutil

// File and directory permission constants, used consistently throughout the
// repository engine so every file it writes carries the same modes.
const (
	// FileModeDefault is used for regular repository files. -rw-r--r--
	FileModeDefault = 0o644

	// FileModeSecure is used for the repository config. -rw-r-----
	FileModeSecure = 0o640

	// DirModeDefault is used for repository directories. drwxr-xr-x
	DirModeDefault = 0o755
)
