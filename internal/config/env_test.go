package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "jobs:pdf:edits", cfg.Queue.Stream)
	assert.Equal(t, "workers:edit", cfg.Queue.Group)
	assert.Equal(t, 120*time.Second, cfg.Worker.ApplyTimeout)
	assert.Equal(t, 3, cfg.Worker.JobMaxAttempts)
	assert.Equal(t, 500, cfg.Editor.MaxSourcePages)
	assert.Equal(t, 1000, cfg.Editor.MaxPageOps)
	assert.Equal(t, 500, cfg.Editor.MaxAnnotationPages)
	assert.Equal(t, 1000, cfg.Editor.MaxAnnotations)
	assert.Equal(t, 64, cfg.Editor.MaxUploadMB)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APPLY_TIMEOUT", "45s")
	t.Setenv("EDIT_MAX_SOURCE_PAGES", "100")
	t.Setenv("QUEUE_STREAM", "jobs:pdf:test")
	t.Setenv("SEND_LOGS_TO_AXIOM", "1")

	cfg := FromEnv()
	assert.Equal(t, 45*time.Second, cfg.Worker.ApplyTimeout)
	assert.Equal(t, 100, cfg.Editor.MaxSourcePages)
	assert.Equal(t, "jobs:pdf:test", cfg.Queue.Stream)
	assert.True(t, cfg.Axiom.Send)
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("EDIT_MAX_PAGE_OPS", "not-a-number")
	t.Setenv("APPLY_TIMEOUT", "soon")

	cfg := FromEnv()
	assert.Equal(t, 1000, cfg.Editor.MaxPageOps)
	assert.Equal(t, 120*time.Second, cfg.Worker.ApplyTimeout)
}
