// Package version holds build metadata stamped in by the linker.
package version

import (
	"runtime/debug"
)

const unknown = "<unknown>"

// Build metadata, overridden with -ldflags "-X".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Version, Commit and Date from the module build info
// when the linker did not set them, e.g. after go install.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for the version command.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
