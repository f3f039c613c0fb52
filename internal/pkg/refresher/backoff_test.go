package refresher

import "testing"

func TestBackoffHours(t *testing.T) {
	tests := []struct {
		failCount int
		want      int
	}{
		{failCount: 0, want: 1},
		{failCount: 1, want: 1},
		{failCount: 2, want: 2},
		{failCount: 3, want: 4},
		{failCount: 4, want: 8},
		{failCount: 5, want: 16},
		{failCount: 6, want: 24},
		{failCount: 7, want: 24},
		{failCount: 100, want: 24},
	}

	for _, tt := range tests {
		if got := BackoffHours(tt.failCount); got != tt.want {
			t.Fatalf("BackoffHours(%d) = %d, want %d", tt.failCount, got, tt.want)
		}
	}
}
