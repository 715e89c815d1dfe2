// Package version reports build metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/soyeahso/forager/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/forager/internal/version.Commit=abc123
//	  -X github.com/soyeahso/forager/internal/version.Date=2026-01-01"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("forager %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent by forager's own HTTP clients.
func UserAgent() string {
	return "forager/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
