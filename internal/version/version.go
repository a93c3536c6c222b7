// Package version carries build metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/pablasso/storyrunner/internal/version.Version=v1.0.0"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// CommitSHA identifies the commit the binary was built from.
	CommitSHA = "unknown"

	// BuildDate records when the binary was built.
	BuildDate = "unknown"
)
