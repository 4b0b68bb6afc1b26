package model

import (
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StateRunning, StateOutputPending, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateTerminating, true},
		{StateRunning, StateComplete, true},
		{StateOutputPending, StateRunning, true},
		{StateOutputPending, StateFailed, true},
		{StateOutputPending, StateComplete, false},
		{StateOutputPending, StateTerminating, false},
		{StateComplete, StateRunning, false},
		{StateFailed, StateRunning, false},
		{StateTerminating, StateRunning, false},
		{"bogus", StateRunning, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{StateComplete, StateFailed, StateTerminating} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%q) = false, want true", s)
		}
	}
	for _, s := range []string{StateRunning, StateOutputPending} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%q) = true, want false", s)
		}
	}
}

func TestPatternConstants(t *testing.T) {
	patterns := []struct {
		constant string
		expected string
	}{
		{PatternRange, "range"},
		{PatternMDRange, "mdrange"},
		{PatternTPTTRTVR, "tpttrtvr"},
		{PatternTPTTR, "tpttr"},
		{PatternTPTVR, "tptvr"},
		{PatternSIMDFor, "simdfor"},
	}
	for _, p := range patterns {
		if p.constant != p.expected {
			t.Errorf("pattern constant = %q, want %q", p.constant, p.expected)
		}
	}
}
