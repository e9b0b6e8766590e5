// Package version records build metadata stamped at link time.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
)

// GetInfo renders the version line printed at startup.
func GetInfo() string {
	return fmt.Sprintf("%s (commit %s)", Version, Commit)
}
