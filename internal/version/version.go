// Package version reports the build version of the deckdrill binaries.
//
// Release builds set the values with ldflags:
//
//	go build -ldflags="-X github.com/muurk/deckdrill/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/deckdrill/internal/version.Commit=abc1234"
//
// Other builds fall back to the module and VCS data embedded by the Go
// toolchain, then to "dev".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	Version = ""
	Commit  = ""
)

// Info is the version data printed by the version subcommands.
type Info struct {
	Version   string
	Commit    string
	Built     string // VCS commit time, RFC 3339, may be empty
	GoVersion string
	Platform  string
}

var built string

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(bi)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo(bi *debug.BuildInfo) {
	if Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}

	var revision, modified string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			built = s.Value
		}
	}
	if Commit == "" && revision != "" {
		Commit = revision[:min(len(revision), 7)]
		if modified == "true" {
			Commit += "-dirty"
		}
	}
	if Version == "" && built != "" {
		if t, err := time.Parse(time.RFC3339, built); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Get returns the version data of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Built:     built,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
