// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the cymatics binary at
// link time: name, build timestamp, Git commit and semantic version. The CLI
// shows it in --version output and the startup log line.
//
//	go build -ldflags "-X cymatics/pkg/build.buildName=cymatics \
//	  -X cymatics/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X cymatics/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X cymatics/pkg/build.buildVersion=$(git describe --tags)"
package build

import "fmt"

// Description is the one-line summary used by the CLI.
const Description = "Render sound as note-coloured Chladni plate patterns"

// Info is the build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the metadata for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Development builds keep the defaults below.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:    "cymatics",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the build info. A missing flag is reported and the development
// defaults stay in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}
