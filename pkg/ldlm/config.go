package ldlm

import "time"

// Config holds the per-engine configuration knobs (enqueue timeout
// floor, replay draining, LRU caps, request sizing) as a struct instead
// of process-wide mutable statics.
// internal/config loads this from file/env/flags via viper; callers
// embedding the engine directly may also construct one by hand.
type Config struct {
	// EnqueueMinSeconds is the minimum completion-wait timeout, applied
	// even when the adaptive estimate would suggest a shorter one.
	EnqueueMinSeconds float64 `mapstructure:"enqueue_min_seconds"`

	// CancelUnusedBeforeReplay, if true, drains the unused LRU with the
	// NO_WAIT policy before a replay pass begins.
	CancelUnusedBeforeReplay bool `mapstructure:"cancel_unused_before_replay"`

	// MaxUnused is the per-namespace unused-LRU cap.
	MaxUnused int `mapstructure:"max_unused"`

	// MaxAge is the per-namespace maximum idle age before the aged and
	// lru_resize policies consider a lock stale.
	MaxAge time.Duration `mapstructure:"max_age"`

	// AdaptiveTimeoutEnabled toggles the adaptive completion-timeout
	// estimator; when false, the engine always uses EnqueueMinSeconds.
	AdaptiveTimeoutEnabled bool `mapstructure:"adaptive_timeout_enabled"`

	// MaxReqSize bounds an enqueue request's wire size.
	MaxReqSize int `mapstructure:"max_req_size"`

	// PageSize is the local page size, used with MaxReqSize and
	// LinkLayerHeadroom to compute how many cancel handles can
	// piggyback on a single enqueue request.
	PageSize int `mapstructure:"page_size"`
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() Config {
	return Config{
		EnqueueMinSeconds:        5,
		CancelUnusedBeforeReplay: true,
		MaxUnused:                1000,
		MaxAge:                   time.Hour,
		AdaptiveTimeoutEnabled:   true,
		MaxReqSize:               1 << 20,
		PageSize:                 4096,
	}
}
