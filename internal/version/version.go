// Package version exposes the collector's build identity, injected at
// link time:
//
//	go build -ldflags "\
//	  -X github.com/brickfi/pool-data/internal/version.Version=$(git describe --tags) \
//	  -X github.com/brickfi/pool-data/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/brickfi/pool-data/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unset variables report development defaults.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String renders the full build identity, e.g.
// "1.2.0 (ab12cd3) built 2026-08-01T00:00:00Z".
func String() string {
	return fmt.Sprintf("%s (%s) built %s", Version, Commit, BuildTime)
}
