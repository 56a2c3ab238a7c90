package util

import (
	"strings"
	"testing"
	"time"
)

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback int
		want     int
	}{
		{"unset uses default", "", 42, 42},
		{"valid value", "7", 42, 7},
		{"whitespace trimmed", " 7 ", 42, 7},
		{"invalid uses default", "seven", 42, 42},
		{"negative allowed", "-3", 42, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CATCONSULT_TEST_INT", tt.value)
			if got := ParseIntEnv("CATCONSULT_TEST_INT", tt.fallback); got != tt.want {
				t.Errorf("ParseIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback time.Duration
		want     time.Duration
	}{
		{"unset uses default", "", time.Hour, time.Hour},
		{"valid value", "90s", time.Hour, 90 * time.Second},
		{"compound value", "1h30m", time.Hour, 90 * time.Minute},
		{"invalid uses default", "soon", time.Hour, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CATCONSULT_TEST_DURATION", tt.value)
			if got := ParseDurationEnv("CATCONSULT_TEST_DURATION", tt.fallback); got != tt.want {
				t.Errorf("ParseDurationEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateConsultationID(t *testing.T) {
	id := GenerateConsultationID()
	if !strings.HasPrefix(id, "c_") {
		t.Errorf("GenerateConsultationID() = %q, want c_ prefix", id)
	}
	if len(id) != len("c_")+32 {
		t.Errorf("GenerateConsultationID() length = %d, want %d", len(id), len("c_")+32)
	}
	for _, r := range id[2:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("GenerateConsultationID() contains non-hex rune %q", r)
		}
	}
	if GenerateConsultationID() == id {
		t.Error("GenerateConsultationID() returned the same value twice")
	}
}

func TestGenerateRandomHex(t *testing.T) {
	if got := GenerateRandomHex(0); got != "" {
		t.Errorf("GenerateRandomHex(0) = %q, want empty", got)
	}
	if got := GenerateRandomHex(-1); got != "" {
		t.Errorf("GenerateRandomHex(-1) = %q, want empty", got)
	}
	if got := GenerateRandomHex(16); len(got) != 16 {
		t.Errorf("GenerateRandomHex(16) length = %d, want 16", len(got))
	}
}
