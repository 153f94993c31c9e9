// SPDX-License-Identifier: MIT
//
// Package build carries metadata stamped into the binary with -ldflags:
// application name, semantic version, Git commit and build timestamp.
// Development builds fall back to placeholder values so nothing has to be
// stamped to run from source.
package build

// Info is the resolved build metadata.
type Info struct {
	Name    string
	Version string
	Commit  string
	Time    string
}

// Populated by -ldflags at release time, e.g.
//
//	-X hush/pkg/build.version=v0.3.0
var (
	name    = "hush"
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Get returns the build metadata for this binary.
func Get() Info {
	return Info{
		Name:    name,
		Version: version,
		Commit:  commit,
		Time:    date,
	}
}
