// Package common holds process-wide helpers shared by the commands.
package common

// Version is set at build time with -ldflags "-X github.com/ruteri/fallback-storage/common.Version=..."
var Version = "dev"

// PackageName prefixes exported metric names.
const PackageName = "fallback_storage"
