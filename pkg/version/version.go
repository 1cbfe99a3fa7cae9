// Package version carries build metadata stamped at link time via
// -ldflags "-X".
package version

// Build metadata. Defaults apply to untagged developer builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
