// Package version holds the build version reported by the server and the CLI.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/aristath/allocator/internal/version.Version=..."
var Version = "0.1.0"
