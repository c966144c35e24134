package ldlm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Config
// ============================================================================

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, 5.0, cfg.EnqueueMinSeconds)
	assert.True(t, cfg.CancelUnusedBeforeReplay)
	assert.Equal(t, 1000, cfg.MaxUnused)
	assert.Equal(t, time.Hour, cfg.MaxAge)
	assert.True(t, cfg.AdaptiveTimeoutEnabled)
	assert.Equal(t, 1<<20, cfg.MaxReqSize)
	assert.Equal(t, 4096, cfg.PageSize)
}

func TestConfig_CustomValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		EnqueueMinSeconds:        1,
		CancelUnusedBeforeReplay: false,
		MaxUnused:                50,
		MaxAge:                   time.Minute,
		AdaptiveTimeoutEnabled:   false,
		MaxReqSize:               4096,
		PageSize:                 512,
	}

	assert.Equal(t, 1.0, cfg.EnqueueMinSeconds)
	assert.False(t, cfg.CancelUnusedBeforeReplay)
	assert.Equal(t, 50, cfg.MaxUnused)
	assert.Equal(t, time.Minute, cfg.MaxAge)
	assert.False(t, cfg.AdaptiveTimeoutEnabled)
	assert.Equal(t, 4096, cfg.MaxReqSize)
	assert.Equal(t, 512, cfg.PageSize)
}
