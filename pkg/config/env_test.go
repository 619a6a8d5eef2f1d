package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("HERALD_TEST_STR", "value")
	if got := GetEnv("HERALD_TEST_STR", "fallback"); got != "value" {
		t.Errorf("expected value, got %q", got)
	}
	if got := GetEnv("HERALD_TEST_STR_MISSING", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}

	// Empty values behave like unset.
	t.Setenv("HERALD_TEST_EMPTY", "")
	if got := GetEnv("HERALD_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("expected fallback for empty value, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback int
		want     int
	}{
		{"valid", "42", 7, 42},
		{"negative", "-3", 7, -3},
		{"invalid", "not-a-number", 7, 7},
		{"empty", "", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HERALD_TEST_INT", tt.value)
			if got := GetEnvInt("HERALD_TEST_INT", tt.fallback); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback bool
		want     bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"invalid", "yep", true, true},
		{"empty", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HERALD_TEST_BOOL", tt.value)
			if got := GetEnvBool("HERALD_TEST_BOOL", tt.fallback); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback time.Duration
		want     time.Duration
	}{
		{"minutes", "15m", time.Hour, 15 * time.Minute},
		{"compound", "1h30m", time.Hour, 90 * time.Minute},
		{"invalid", "soon", time.Hour, time.Hour},
		{"bare number", "15", time.Hour, time.Hour},
		{"empty", "", time.Hour, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HERALD_TEST_DUR", tt.value)
			if got := GetEnvDuration("HERALD_TEST_DUR", tt.fallback); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	fallback := []string{"twitter", "linkedin"}

	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "twitter", []string{"twitter"}},
		{"multiple", "twitter,linkedin", []string{"twitter", "linkedin"}},
		{"whitespace trimmed", " twitter , linkedin ", []string{"twitter", "linkedin"}},
		{"empty entries dropped", "twitter,,linkedin,", []string{"twitter", "linkedin"}},
		{"only separators", ",, ,", fallback},
		{"empty", "", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HERALD_TEST_LIST", tt.value)
			got := GetEnvList("HERALD_TEST_LIST", fallback)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
