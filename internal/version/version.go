package version

// Name identifies the service as JWT issuer, PDF creator and in health output.
const Name = "NexusComply"

// Overridden at release time, e.g.
// -ldflags "-X github.com/nexuscomply/backend/internal/version.GitCommit=abc123".
var (
	Version   = "0.4.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata reported by GET /api/v1/health.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// Current snapshots the linked build metadata.
func Current() Info {
	return Info{Service: Name, Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// Stamped reports whether both ldflags values were provided.
func (i Info) Stamped() bool {
	return i.BuildTime != "unknown" && i.GitCommit != "unknown"
}

// Full renders the version for the startup log line.
func Full() string {
	info := Current()
	if !info.Stamped() {
		return info.Version
	}
	return info.Version + " (commit: " + info.GitCommit + ", built: " + info.BuildTime + ")"
}
