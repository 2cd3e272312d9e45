package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Set via -ldflags "-X github.com/ternarybob/claimscope/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// VersionFileName is read from the binary's directory by LoadVersionFromFile
const VersionFileName = ".version"

// VersionInfo is reported by /api/version and `claimscope version`
type VersionInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func GetVersion() string {
	return Version
}

// GetVersionInfo returns the build metadata of the running binary
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Build:     Build,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetFullVersion is the one-line form used in crash reports and the CLI
func GetFullVersion() string {
	info := GetVersionInfo()
	return fmt.Sprintf("%s (build: %s, commit: %s, %s %s)", info.Version, info.Build, info.GitCommit, info.GoVersion, info.Platform)
}

// LoadVersionFromFile overrides Version with the .version file next to the
// binary, when one exists and Version was not set at link time
func LoadVersionFromFile() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}
	return loadVersionFrom(filepath.Dir(exePath))
}

func loadVersionFrom(dir string) string {
	if Version != "dev" {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(dir, VersionFileName))
	if err != nil {
		return Version
	}

	if version := strings.TrimSpace(string(data)); version != "" {
		Version = version
	}
	return Version
}
