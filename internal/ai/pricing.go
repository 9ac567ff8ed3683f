package ai

import "strings"

// rate is a price list in USD per million tokens.
type rate struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

// rates is matched by model name substring, first hit wins.
var rates = []struct {
	family string
	rate   rate
}{
	{"claude-opus", rate{Input: 15, Output: 75, CacheWrite: 18.75, CacheRead: 1.50}},
	{"claude-sonnet", rate{Input: 3, Output: 15, CacheWrite: 3.75, CacheRead: 0.30}},
	{"claude-3-5-haiku", rate{Input: 0.80, Output: 4, CacheWrite: 1, CacheRead: 0.08}},
	{"claude-haiku", rate{Input: 1, Output: 5, CacheWrite: 1.25, CacheRead: 0.10}},
	{"gemini-2.5-pro", rate{Input: 1.25, Output: 10, CacheRead: 0.31}},
	{"gemini-2.5-flash-lite", rate{Input: 0.10, Output: 0.40, CacheRead: 0.025}},
	{"gemini-2.5-flash", rate{Input: 0.30, Output: 2.50, CacheRead: 0.075}},
}

// fallbackRates price unknown hosted models at the Sonnet list price.
var fallbackRates = rate{Input: 3, Output: 15, CacheWrite: 3.75, CacheRead: 0.30}

func rateFor(model string) rate {
	model = strings.ToLower(model)
	for _, r := range rates {
		if strings.Contains(model, r.family) {
			return r.rate
		}
	}
	return fallbackRates
}

// price fills s.CostUSD from its token counts. Cached prompt tokens are
// billed at the cache read rate instead of the input rate.
func price(s *Stats) {
	r := rateFor(s.Model)
	const mtok = 1_000_000
	s.CostUSD = (float64(s.InputTokens)*r.Input +
		float64(s.OutputTokens)*r.Output +
		float64(s.CacheCreationTokens)*r.CacheWrite +
		float64(s.CacheReadTokens)*r.CacheRead) / mtok
}
