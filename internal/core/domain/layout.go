package domain

import "path/filepath"

const (
	// WorkDirName is the directory concord keeps local state in, next to its config file.
	WorkDirName = ".concord"

	// CacheDirName is the name of the on-disk cache directory.
	CacheDirName = "cache"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750
)

// DefaultCachePath returns the default path for an on-disk cache.
// It joins .concord and cache.
func DefaultCachePath() string {
	return filepath.Join(WorkDirName, CacheDirName)
}

// ResolveStorePath anchors a store path at base. Absolute paths are kept;
// an empty path selects DefaultCachePath.
func ResolveStorePath(base, path string) string {
	if path == "" {
		path = DefaultCachePath()
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
