package cipher

import "strings"

const maskVisible = 4

// Mask returns a display-safe form of token: the first and last four
// characters survive and everything between becomes '*'. Tokens of eight
// characters or fewer are fully masked and blank input masks to "".
// The result always has as many characters as the input.
func Mask(token string) string {
	if strings.TrimSpace(token) == "" {
		return ""
	}

	runes := []rune(token)
	n := len(runes)
	if n <= 2*maskVisible {
		return strings.Repeat("*", n)
	}

	var b strings.Builder
	b.Grow(len(token))
	b.WriteString(string(runes[:maskVisible]))
	b.WriteString(strings.Repeat("*", n-2*maskVisible))
	b.WriteString(string(runes[n-maskVisible:]))
	return b.String()
}
