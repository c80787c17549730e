package ui

import "testing"

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"plain", "success", 7},
		{"empty", "", 0},
		{"colored", "\x1b[32msuccess\x1b[0m", 7},
		{"bold and colored", "\x1b[1m\x1b[31merror\x1b[0m", 5},
		{"multibyte runes", "résumé", 6},
		{"escape only", "\x1b[0m", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayWidth(tt.in); got != tt.want {
				t.Errorf("displayWidth(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
