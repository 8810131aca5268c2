// Package version records the build version shared by both binaries.
package version

// Version is stamped at link time via -ldflags "-X ffui/internal/version.Version=...".
var Version = "0.4.0-dev"
