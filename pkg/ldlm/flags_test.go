package ldlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Flag bitset
// ============================================================================

func TestFlag_Has(t *testing.T) {
	t.Parallel()

	f := FlagCBPending | FlagCanceling
	assert.True(t, f.Has(FlagCBPending))
	assert.True(t, f.Has(FlagCanceling))
	assert.True(t, f.Has(FlagCBPending|FlagCanceling))
	assert.False(t, f.Has(FlagBLAST))
}

func TestFlag_Any(t *testing.T) {
	t.Parallel()

	f := FlagBlockWait
	assert.True(t, f.Any(BlockedMask))
	assert.False(t, Flag(0).Any(BlockedMask))
}

func TestBlockedMask_Composition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		flag   Flag
		any    bool
	}{
		{"granted", FlagBlockGranted, true},
		{"wait", FlagBlockWait, true},
		{"conv", FlagBlockConv, true},
		{"ast_sent alone", FlagASTSent, false},
		{"no flags", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flag.Any(BlockedMask); got != tt.any {
				t.Errorf("Any(BlockedMask) = %v, want %v", got, tt.any)
			}
		})
	}
}

// ============================================================================
// Mode
// ============================================================================

func TestMode_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		want string
	}{
		{ModeNone, "none"},
		{ModePR, "PR"},
		{ModePW, "PW"},
		{ModeCR, "CR"},
		{ModeCW, "CW"},
		{Mode(0xdead), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestMode_DistinctBits(t *testing.T) {
	t.Parallel()

	seen := map[Mode]bool{}
	for _, m := range []Mode{ModePR, ModePW, ModeCR, ModeCW} {
		if seen[m] {
			t.Fatalf("mode %v collides with a previously seen mode", m)
		}
		seen[m] = true
	}
}

// ============================================================================
// CancelFlag
// ============================================================================

func TestCancelFlag_Bits(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, CancelFlagAsync, CancelFlagLocal)
	combined := CancelFlagAsync | CancelFlagLocal
	assert.NotEqual(t, CancelFlag(0), combined&CancelFlagAsync)
	assert.NotEqual(t, CancelFlag(0), combined&CancelFlagLocal)
}
