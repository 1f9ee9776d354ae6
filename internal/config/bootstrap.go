package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// UserConfigName is the file the engine reads from its data dir.
const UserConfigName = "config.yml"

// EnsureUserConfig makes sure dataDir/config.yml exists. On first run it is
// seeded from defaultPath, or left as an empty mapping when no default ships.
// created reports whether the file was written by this call.
func EnsureUserConfig(dataDir, defaultPath string) (path string, created bool, err error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", false, err
	}
	path = filepath.Join(dataDir, UserConfigName)

	switch _, err := os.Stat(path); {
	case err == nil:
		return path, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", false, err
	}

	src, err := os.Open(defaultPath)
	if errors.Is(err, os.ErrNotExist) {
		return path, true, os.WriteFile(path, []byte("{}\n"), 0o644)
	}
	if err != nil {
		return "", false, err
	}
	defer src.Close()

	if err := copyTo(path, src); err != nil {
		return "", false, fmt.Errorf("seed %s: %w", path, err)
	}
	return path, true, nil
}

func copyTo(path string, src io.Reader) error {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}
