package prompt

// EstimateTokens approximates the token count of text with a
// Unicode-aware heuristic: ASCII runs at roughly 4 characters per
// token, while CJK and other non-ASCII scripts run close to 1
// character per token. The estimate errs on the conservative side so
// the assembled context stays under the real window.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
