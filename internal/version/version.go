// Package version provides build information for the relay binaries.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Overridden by ldflags at build time.
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// Info is the resolved build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the build info, filling commit and time from the embedded VCS stamp when ldflags left them empty.
func Get() Info {
	resolveOnce.Do(func() {
		resolved = Info{Version: Version, Commit: CommitHash, BuildTime: BuildTime}
		if resolved.Commit != "" {
			return
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range bi.Settings {
				switch setting.Key {
				case "vcs.revision":
					resolved.Commit = setting.Value
				case "vcs.time":
					resolved.BuildTime = setting.Value
				}
			}
		}
	})
	return resolved
}

// GetInfo returns "version (shortcommit)".
func GetInfo() string {
	return Get().String()
}

func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	short := i.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, short)
}
