// Package version carries build metadata injected at link time.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String returns a one-line human-readable version string.
func String() string {
	return fmt.Sprintf("qrscan %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
