// Package version reports build information. Values are set with
// -ldflags "-X github.com/banshee-data/trajalign/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Year is the copyright year reported by the CLI banner.
const Year = 2026

// Info is a snapshot of the build variables.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// Get returns the build information.
func Get() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

// String formats the version for annotations and banners.
func (i Info) String() string {
	if i.GitSHA == "" || i.GitSHA == "unknown" {
		return i.Version
	}
	sha := i.GitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, sha)
}
