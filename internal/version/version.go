// Package version holds build metadata set through -ldflags:
//
//	go build -ldflags "-X github.com/soyeahso/agentclick/internal/version.Version=2.0.0
//	  -X github.com/soyeahso/agentclick/internal/version.Commit=abc123
//	  -X github.com/soyeahso/agentclick/internal/version.Date=2026-01-01"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Resolved returns version and commit, falling back to the module build
// info recorded by `go install` when no ldflags were given.
func Resolved() (version, commit string) {
	version, commit = Version, Commit
	info, ok := readBuildInfo()
	if !ok {
		return version, commit
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == "unknown" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				commit = s.Value
			}
		}
	}
	return version, commit
}

// Info is the line printed by `agentclick version`.
func Info() string {
	v, c := Resolved()
	return fmt.Sprintf("agentclick %s (commit: %s, built: %s, %s/%s)", v, short(c), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP requests such as URL input fetches.
func UserAgent() string {
	v, c := Resolved()
	return fmt.Sprintf("agentclick/%s (%s)", v, short(c))
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
