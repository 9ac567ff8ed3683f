package ai

import (
	"math"
	"testing"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  float64
	}{
		{"sonnet", Stats{Model: "claude-sonnet-4-5", InputTokens: 1000, OutputTokens: 500}, 0.0105},
		{"sonnet cache write", Stats{Model: "claude-sonnet-4-5", InputTokens: 1000, OutputTokens: 500, CacheCreationTokens: 2000}, 0.018},
		{"opus", Stats{Model: "claude-opus-4-1", InputTokens: 1000, OutputTokens: 100}, 0.0225},
		{"haiku 3.5", Stats{Model: "claude-3-5-haiku-latest", InputTokens: 10000}, 0.008},
		{"flash lite before flash", Stats{Model: "gemini-2.5-flash-lite", InputTokens: 1_000_000}, 0.10},
		{"flash cached", Stats{Model: "gemini-2.5-flash", InputTokens: 1000, OutputTokens: 200, CacheReadTokens: 4000}, 0.0011},
		{"unknown model", Stats{Model: "mystery", OutputTokens: 1000}, 0.015},
		{"zero", Stats{Model: "claude-sonnet-4-5"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stats
			price(&s)
			if math.Abs(s.CostUSD-tt.want) > 1e-9 {
				t.Errorf("CostUSD = %.7f, want %.7f", s.CostUSD, tt.want)
			}
		})
	}
}
