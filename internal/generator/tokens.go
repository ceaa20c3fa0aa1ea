package generator

import "unicode"

// EstimateTokens provides a rough token estimate for a prompt.
// CJK text is ~2 chars/token, everything else ~4 chars/token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var wide, other int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			wide++
			continue
		}
		other++
	}
	return (wide+1)/2 + (other+3)/4
}
