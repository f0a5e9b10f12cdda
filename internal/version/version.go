// Package version holds build metadata, set at link time via -ldflags.
package version

import "fmt"

// Version is the release version.
// Override at build time: go build -ldflags "-X github.com/velocitykv/velocity/internal/version.Version=0.2.0"
var Version = "0.1.0"

// Commit is the VCS revision the binary was built from.
var Commit = "none"

// BuildTime is the build timestamp.
// Override at build time: go build -ldflags "-X github.com/velocitykv/velocity/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = "unknown"

// String returns the version line printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}
