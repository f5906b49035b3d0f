// Package version holds build information set by the linker:
//
//	go build -ldflags "-X github.com/shl518/vchat/internal/version.Version=v0.1.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These will be set by the linker during build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Short returns the version number only.
func Short() string {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return Version
}

// Info returns the full version description.
func Info() string {
	return fmt.Sprintf("vchat %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s",
		Short(), GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
