// Package version holds the engine version string stamped into health
// responses and startup records.
package version

// Version is the engine release version.
const Version = "0.4.0"
