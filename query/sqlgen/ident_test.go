package sqlgen

import (
	"strings"
	"testing"
)

func TestTruncateIdentifierShortNamesUntouched(t *testing.T) {
	for _, name := range []string{"", "id", "created_at", strings.Repeat("x", 63)} {
		if got := TruncateIdentifier(name, 63); got != name {
			t.Errorf("TruncateIdentifier(%q, 63) = %q, want unchanged", name, got)
		}
	}
}

func TestTruncateIdentifierExactLength(t *testing.T) {
	long := strings.Repeat("a", 100)
	for _, max := range []int{63, 64, 30, 10} {
		got := TruncateIdentifier(long, max)
		if len(got) != max {
			t.Errorf("max %d: got %d bytes (%q)", max, len(got), got)
		}
	}
}

func TestTruncateIdentifierKeepsPrefix(t *testing.T) {
	got := TruncateIdentifier("customer_lifetime_value_rolling_average_by_cohort", 30)
	if !strings.HasPrefix(got, "customer_lifetime_val") {
		t.Errorf("truncated name %q lost its prefix", got)
	}
	if !strings.Contains(got, "_") {
		t.Errorf("truncated name %q carries no checksum suffix", got)
	}
}

func TestTruncateIdentifierSharedPrefixStaysDistinct(t *testing.T) {
	base := strings.Repeat("order_total_", 10)
	a := TruncateIdentifier(base+"gross", 63)
	b := TruncateIdentifier(base+"net", 63)
	if a == b {
		t.Errorf("distinct identifiers collapsed to %q", a)
	}
}

func TestTruncateIdentifierDeterministic(t *testing.T) {
	long := strings.Repeat("metric_", 20)
	if TruncateIdentifier(long, 63) != TruncateIdentifier(long, 63) {
		t.Error("truncation is not deterministic")
	}
}

func TestTruncateIdentifierDegenerateLimit(t *testing.T) {
	long := strings.Repeat("z", 40)
	for _, max := range []int{9, 5, 1} {
		got := TruncateIdentifier(long, max)
		if len(got) != max {
			t.Errorf("max %d: got %d bytes (%q)", max, len(got), got)
		}
	}
	if got := TruncateIdentifier(long, 0); got != long {
		t.Errorf("zero limit should disable truncation, got %q", got)
	}
}
