package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIsValidText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"plain", "hello world", true},
		{"whitespace", "line one\n\tline two\r\n", true},
		{"unicode", "Grüße, 世界", true},
		{"binary", string([]byte{0, 1, 2, 3, 4, 5}), false},
		{"invalid utf8", string([]byte{0xff, 0xfe, 0xfd}), false},
		{"exactly 80 percent", "abcd\x00", true},
		{"below 80 percent", "abc\x00\x01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidText(tt.text))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 150))
	assert.Equal(t, strings.Repeat("a", 150), Truncate(strings.Repeat("a", 150), 150))
	assert.Equal(t, strings.Repeat("a", 150)+"...", Truncate(strings.Repeat("a", 151), 150))
	assert.Equal(t, "日本...", Truncate("日本語テキスト", 2))

	long := strings.Repeat("é", 200)
	cut := Truncate(long, 150)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, strings.Repeat("é", 150)+"...", cut)
}
