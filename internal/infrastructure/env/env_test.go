package env

import (
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	t.Setenv("CONVOY_TEST_STRING", "abc")
	t.Setenv("CONVOY_TEST_INT", "42")
	t.Setenv("CONVOY_TEST_BAD_INT", "forty-two")
	t.Setenv("CONVOY_TEST_BOOL", "true")
	t.Setenv("CONVOY_TEST_DURATION", "1m30s")
	t.Setenv("CONVOY_TEST_FLOAT", "7.5")

	if got := GetString("CONVOY_TEST_STRING", "x"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := GetString("CONVOY_TEST_MISSING", "x"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := GetInt("CONVOY_TEST_INT", 0); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := GetInt("CONVOY_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("expected fallback for unparsable int, got %d", got)
	}
	if !GetBool("CONVOY_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	if got := GetDuration("CONVOY_TEST_DURATION", 0); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	if got := GetFloat("CONVOY_TEST_FLOAT", 0); got != 7.5 {
		t.Fatalf("expected 7.5, got %v", got)
	}
}
