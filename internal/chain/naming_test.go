package chain

import (
	"testing"
	"time"
)

func TestNextName(t *testing.T) {
	now := time.Date(2025, 3, 9, 10, 30, 0, 0, time.Local)

	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"no chains", nil, "2025-03-09"},
		{"other days only", []string{"2025-03-08", "2025-03-08 (2)"}, "2025-03-09"},
		{"bare date exists", []string{"2025-03-09"}, "2025-03-09 (2)"},
		{"counter exists", []string{"2025-03-09", "2025-03-09 (2)"}, "2025-03-09 (3)"},
		{"gap after delete", []string{"2025-03-09 (3)"}, "2025-03-09 (4)"},
		{"only explicit one", []string{"2025-03-09 (1)"}, "2025-03-09 (2)"},
		{"custom name with date", []string{"2025-03-09 reading"}, "2025-03-09 (1)"},
		{"renamed chains ignored", []string{"Research", "Go notes (7)"}, "2025-03-09"},
		{"unordered counters", []string{"2025-03-09 (5)", "2025-03-09", "2025-03-09 (2)"}, "2025-03-09 (6)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextName(tt.existing, now); got != tt.want {
				t.Errorf("NextName(%v) = %q, want %q", tt.existing, got, tt.want)
			}
		})
	}
}

func TestNextName_Monotonic(t *testing.T) {
	now := time.Date(2025, 3, 9, 10, 30, 0, 0, time.Local)

	var names []string
	for i := 0; i < 5; i++ {
		names = append(names, NextName(names, now))
	}

	want := []string{"2025-03-09", "2025-03-09 (2)", "2025-03-09 (3)", "2025-03-09 (4)", "2025-03-09 (5)"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
