// Package version holds build information set at link time.
package version

import (
	"fmt"
	"runtime"
)

// Build information set via -ldflags "-X retailetl/pkg/version.Version=...".
var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns formatted version information.
func Info() string {
	return fmt.Sprintf("retailetl %s (commit: %s, built: %s, go: %s)", Version, Commit, BuildDate, runtime.Version())
}
