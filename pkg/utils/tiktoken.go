// Package utils provides token counting and small typed-map helpers.
package utils

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

//nolint:gochecknoglobals // codec loading is expensive; share one instance
var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func sharedCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.ForModel(tokenizer.GPT4)
		if err == nil {
			codec = c
		}
	})
	return codec
}

// CountTokensSimple counts tokens with the GPT-4 encoding.
// Every provider is approximated with it; on failure it estimates 4 chars per token.
func CountTokensSimple(text string) int {
	if c := sharedCodec(); c != nil {
		if count, err := c.Count(text); err == nil {
			return count
		}
	}
	return len(text) / 4
}

// TruncateToTokenLimit cuts text so it fits roughly within limit tokens.
// The cut is proportional by characters, not on token boundaries.
func TruncateToTokenLimit(text string, limit int) string {
	current := CountTokensSimple(text)
	if current <= limit {
		return text
	}

	charLimit := int(float64(len([]rune(text))) * float64(limit) / float64(current) * 0.9)
	runes := []rune(text)
	if charLimit >= len(runes) {
		return text
	}
	if charLimit < 0 {
		charLimit = 0
	}
	return string(runes[:charLimit]) + "..."
}
