// Package version provides build-time metadata for the rate tracker service.
// These variables are populated via -ldflags during the container build.
package version

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Version is the semantic version or git commit hash (e.g., "v1.0.0" or "a1b2c3d").
	// Set via: -ldflags "-X ratetracker/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC timestamp when the binary was built.
	BuildDate = "unknown"

	// GitCommit is the git commit SHA of the source code.
	GitCommit = "unknown"
)

// Info holds all build metadata and runtime information.
type Info struct {
	Version    string    `json:"version"`
	GitCommit  string    `json:"git_commit"`
	BuildDate  string    `json:"build_date"`
	InstanceID string    `json:"instance_id"`
	Hostname   string    `json:"hostname"`
	StartedAt  time.Time `json:"started_at"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata and runtime information.
// Instance ID, hostname and start time are captured on the first call.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   getHostname(),
			StartedAt:  time.Now(),
		}
	})
	return info
}

// getHostname returns the system hostname, fallback to "unknown" on error.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// Uptime is the time since StartedAt, truncated to seconds.
func (i Info) Uptime() time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	return time.Since(i.StartedAt).Truncate(time.Second)
}

// UserAgent identifies outbound requests made by this binary.
func (i Info) UserAgent() string {
	return "ratetracker/" + i.Version
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("ratetracker version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}
