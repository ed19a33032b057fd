// Package version holds build-time version information for the ragchat binary.
// The variables in this package are populated at build time via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/ragchat-go/internal/version.Version=v1.2.3 \
//	                    -X github.com/54b3r/ragchat-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/ragchat-go/internal/version.BuildDate=2025-01-01"
package version

import "fmt"

// Version is the semantic version of the binary. Defaults to "dev".
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date in RFC3339 format.
var BuildDate = "unknown"

// String renders the build info on one line, as printed by `ragchat version`
// and reported by the health endpoint.
func String() string {
	return fmt.Sprintf("ragchat %s (commit %s, built %s)", Version, Commit, BuildDate)
}
