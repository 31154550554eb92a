// Package version reports the reviewctx build.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set at link time:
//
//	go build -ldflags "-X reviewctx/internal/version.Version=0.4.1 -X reviewctx/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// commit returns the linked commit, falling back to the VCS stamp the Go
// toolchain embeds in module builds.
func commit() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "unknown"
}

// Info returns the version with an abbreviated commit when one is known.
func Info() string {
	if c := commit(); c != "unknown" && len(c) > 7 {
		return Version + " (" + c[:7] + ")"
	}
	return Version
}

// Full returns the multi-line `reviewctx version` output.
func Full() string {
	return "reviewctx " + Version + "\n" +
		"commit: " + commit() + "\n" +
		"built: " + BuildDate + "\n" +
		"go: " + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}
