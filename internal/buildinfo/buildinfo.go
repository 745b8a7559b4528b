// Package buildinfo carries the version stamped in with -ldflags "-X".
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version when stamped, else the commit, else "dev".
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "" && Commit != "unknown":
		return Commit
	default:
		return "dev"
	}
}

// String is the one-line banner logged at boot.
func String() string {
	return fmt.Sprintf("ember %s (commit %s, built %s)", Short(), Commit, Date)
}
