package main

import "testing"

func TestResolveLive(t *testing.T) {
	tests := []struct {
		name          string
		live          bool
		dryRunChanged bool
		dryRun        bool
		want          bool
	}{
		{"default", false, false, true, false},
		{"live", true, false, true, true},
		{"live with explicit dry-run", true, true, true, false},
		{"live with dry-run=false", true, true, false, true},
		{"explicit dry-run only", false, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveLive(tt.live, tt.dryRunChanged, tt.dryRun); got != tt.want {
				t.Errorf("resolveLive(%v, %v, %v) = %v, want %v",
					tt.live, tt.dryRunChanged, tt.dryRun, got, tt.want)
			}
		})
	}
}
