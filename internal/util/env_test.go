package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default true", "", true, true},
		{"unset uses default false", "", false, false},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes", "yes", false, true},
		{"on", "on", false, true},
		{"mixed case", "TRUE", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"no", "no", true, false},
		{"off", "off", true, false},
		{"padded", "  true  ", false, true},
		{"invalid uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FRIENDQUIZ_TEST_BOOL", tt.value)
			if got := ParseBoolEnv("FRIENDQUIZ_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	const def = 30 * time.Minute
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset uses default", "", def},
		{"minutes", "15m", 15 * time.Minute},
		{"hours", "2h", 2 * time.Hour},
		{"compound", "1h30m", 90 * time.Minute},
		{"padded", "  45s  ", 45 * time.Second},
		{"invalid uses default", "soon", def},
		{"bare number uses default", "300", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FRIENDQUIZ_TEST_DURATION", tt.value)
			if got := ParseDurationEnv("FRIENDQUIZ_TEST_DURATION", def); got != tt.want {
				t.Errorf("ParseDurationEnv(%q, %v) = %v, want %v", tt.value, def, got, tt.want)
			}
		})
	}
}
