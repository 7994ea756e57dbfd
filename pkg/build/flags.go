// SPDX-License-Identifier: MIT
//
// Package build exposes the binary's identity: name, version, commit and
// build timestamp. Release builds inject the values with linker flags, for
// example:
//
//	go build -ldflags "-X phono/pkg/build.buildName=phono \
//	    -X phono/pkg/build.buildVersion=0.1.0"
//
// Development builds fall back to placeholder values so the binary still
// runs without them.
package build

// Populated by -ldflags at compile time; empty in development builds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

// Info is the resolved build identity.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

var buildInfo = Info{
	Name:    "phono",
	Time:    "unknown",
	Commit:  "unknown",
	Version: "dev",
}

// Initialize resolves the build identity, letting linker-injected values
// override the development defaults. Call once at startup, before
// GetBuildFlags.
func Initialize() {
	if buildName != "" {
		buildInfo.Name = buildName
	}
	if buildTime != "" {
		buildInfo.Time = buildTime
	}
	if buildCommit != "" {
		buildInfo.Commit = buildCommit
	}
	if buildVersion != "" {
		buildInfo.Version = buildVersion
	}
}

// GetBuildFlags returns the resolved build identity.
func GetBuildFlags() Info {
	return buildInfo
}
