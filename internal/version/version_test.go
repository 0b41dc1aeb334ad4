package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, buildTime, commit string) {
	t.Helper()
	prevTime, prevCommit := BuildTime, GitCommit
	t.Cleanup(func() { BuildTime, GitCommit = prevTime, prevCommit })
	BuildTime, GitCommit = buildTime, commit
}

func TestFull_Unstamped(t *testing.T) {
	stamp(t, "unknown", "unknown")
	assert.False(t, Current().Stamped())
	assert.Equal(t, Version, Full())
}

func TestFull_PartiallyStamped(t *testing.T) {
	stamp(t, "2026-10-01", "unknown")
	assert.Equal(t, Version, Full())
}

func TestFull_Stamped(t *testing.T) {
	stamp(t, "2026-10-01", "9f1c2e")
	info := Current()
	assert.True(t, info.Stamped())
	assert.Equal(t, "NexusComply", info.Service)
	assert.Equal(t, Version+" (commit: 9f1c2e, built: 2026-10-01)", Full())
}
