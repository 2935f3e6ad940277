package version

// Overridden at build time via -ldflags; defaults are for local development.
var (
	Version = "dev"
	Commit  = "none"
)
