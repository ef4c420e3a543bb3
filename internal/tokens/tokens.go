// Package tokens counts prompt tokens for conversation budgeting.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encoding = "cl100k_base"

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
)

// Count returns the token count of text. When the encoding cannot be
// initialized (offline first run), it falls back to the rune estimate.
func Count(text string) int {
	once.Do(func() {
		enc, _ = tiktoken.GetEncoding(encoding)
	})
	if enc == nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate approximates tokens at four characters each, never zero for
// non-empty text.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / 4
	if n == 0 {
		return 1
	}
	return n
}
