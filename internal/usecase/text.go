package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPrintableRatio = 0.8
	ellipsis          = "..."
)

// isValidText reports whether text is non-empty and at least 80% of its
// runes are printable or whitespace. Undecodable bytes count as invalid.
func isValidText(text string) bool {
	if text == "" {
		return false
	}

	total, printable := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable)/float64(total) >= minPrintableRatio
}

// Truncate keeps the first n runes of text, marking a cut with "...".
func Truncate(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}

	var b strings.Builder
	b.Grow(n*utf8.UTFMax + len(ellipsis))
	i := 0
	for _, r := range text {
		if i == n {
			break
		}
		b.WriteRune(r)
		i++
	}
	b.WriteString(ellipsis)
	return b.String()
}
