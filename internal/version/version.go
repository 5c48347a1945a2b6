// Package version carries the build metadata of the feedocr binary.
package version

import "fmt"

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/MeKo-Tech/feedocr/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
