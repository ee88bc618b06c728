// Package version reports the build metadata stamped into the binary.
package version

import (
	"runtime/debug"
	"time"
)

// Stamped at build time via -ldflags "-X".
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

// Info is the resolved build metadata of the running binary.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Resolve combines the stamped variables with the embedded module build
// info: an unstamped commit falls back to the VCS revision recorded by
// the Go toolchain, an unstamped version to the module version or, for
// local builds, a dated pseudo-version.
func Resolve() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			}
		}
	}
	if info.Version == "" {
		info.Version = "devel-" + time.Now().UTC().Format("20060102")
	}
	return info
}

// String renders "version (commit)" with the commit shortened to twelve
// characters, or the bare version when no commit is known.
func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	c := info.Commit
	if len(c) > 12 {
		c = c[:12]
	}
	return info.Version + " (" + c + ")"
}
