package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SecretScanner detects and redacts credentials in free text.
type SecretScanner interface {
	// Scan returns the redacted text and whether anything was redacted.
	Scan(ctx context.Context, text string) (redactedText string, hadRedactions bool, err error)
}

// PatternScanner is a regex-based secret scanner.
type PatternScanner struct {
	patterns []*regexp.Regexp
	timeout  time.Duration
}

// NewPatternScanner creates a scanner with the default patterns.
func NewPatternScanner(timeout time.Duration) *PatternScanner {
	return &PatternScanner{patterns: compileDefaultPatterns(), timeout: timeout}
}

func compileDefaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// LLM provider keys
		`sk-ant-[A-Za-z0-9_-]{40,}`,
		`sk-proj-[A-Za-z0-9_-]{40,}`,
		`sk-[A-Za-z0-9]{40,}`,
		`AIza[0-9A-Za-z_-]{35}`,

		// CoinGecko demo keys
		`CG-[A-Za-z0-9]{20,}`,

		// AWS access keys
		`AKIA[0-9A-Z]{16}`,

		// Wallet private keys
		`\b0x[a-fA-F0-9]{64}\b`,

		`(?i)api[_-]?key[_-]?[:=]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`,
		`(?i)secret[_-]?[:=]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`,
		`Bearer\s+[A-Za-z0-9._-]{20,}`,
		`-----BEGIN\s+(?:RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY-----`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Scan implements SecretScanner.
func (s *PatternScanner) Scan(ctx context.Context, text string) (string, bool, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	hadRedactions := false
	redacted := text
	for _, pattern := range s.patterns {
		if err := ctx.Err(); err != nil {
			return "", false, fmt.Errorf("context cancelled during pattern matching: %w", err)
		}
		if pattern.MatchString(redacted) {
			hadRedactions = true
			redacted = pattern.ReplaceAllString(redacted, "[redacted]")
		}
	}
	return redacted, hadRedactions, nil
}

// redactionNote marks text that the scanner changed.
const redactionNote = " (Note: content redacted by scanner)"

// RedactSecrets applies scanner and appends a note when something was
// redacted. On scanner error the original text is returned with the error.
func RedactSecrets(ctx context.Context, scanner SecretScanner, text string) (string, error) {
	redacted, hadRedactions, err := scanner.Scan(ctx, text)
	if err != nil {
		return text, fmt.Errorf("secret scanner error: %w", err)
	}
	if hadRedactions && !strings.HasSuffix(redacted, redactionNote) {
		redacted += redactionNote
	}
	return redacted, nil
}
