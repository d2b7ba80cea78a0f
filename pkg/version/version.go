// Package version reports the catalogsearch build.
//
// Release builds stamp Version, Commit and Date through ldflags:
//
//	-X github.com/Aman-CERP/catalogsearch/pkg/version.Version=$(VERSION)
//
// Without ldflags, Commit and Date fall back to the VCS stamp the go
// command embeds, so `go install` binaries still identify their revision.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release version, "dev" for unstamped builds.
var Version = "dev"

var (
	// Commit is the short git revision.
	Commit = "unknown"

	// Date is the build or commit time in RFC3339.
	Date = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is the JSON form of `catalogsearch version --format json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	Commit, Date = vcsStamp(info.Settings, Commit, Date)
}

// vcsStamp fills commit and date from VCS build settings when they were not
// set through ldflags.
func vcsStamp(settings []debug.BuildSetting, commit, date string) (string, string) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && s.Value != "" {
				commit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if date == "unknown" && s.Value != "" {
				date = s.Value
			}
		}
	}
	return commit, date
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("catalogsearch %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
