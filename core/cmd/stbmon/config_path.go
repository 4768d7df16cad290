package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

const defaultConfigFile = "config.yaml"

// configSearchPaths lists the locations tried when --config is not overridden
func configSearchPaths() []string {
	possiblePaths := []string{
		filepath.Join(".", defaultConfigFile),
	}

	if runtime.GOOS == "windows" {
		if appDataDir := os.Getenv("APPDATA"); appDataDir != "" {
			possiblePaths = append(possiblePaths, filepath.Join(appDataDir, "stbmon", defaultConfigFile))
		}
		if programDataDir := os.Getenv("ProgramData"); programDataDir != "" {
			possiblePaths = append(possiblePaths, filepath.Join(programDataDir, "stbmon", defaultConfigFile))
		}
		return possiblePaths
	}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		possiblePaths = append(possiblePaths, filepath.Join(userConfigDir, "stbmon", defaultConfigFile))
	}
	return append(possiblePaths, filepath.Join("/etc", "stbmon", defaultConfigFile))
}

// resolveConfigPath returns the explicit path, or the first existing file on
// the search path when the default name was left in place.
func resolveConfigPath(flagValue string, candidates []string, logger *slog.Logger) (string, error) {
	if flagValue != defaultConfigFile {
		return flagValue, nil
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			logger.Debug("configuration file found", "path", path)
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s found in %v", defaultConfigFile, candidates)
}
