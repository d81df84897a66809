package session

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/persistence"
)

// pronounLookback is how many recent turns are searched for a coin.
const pronounLookback = 3

//nolint:gochecknoglobals // compiled once
var pronounWord = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(it|that|this|them|those|nó|đó|này)($|[^\p{L}\p{N}])`)

// HasPronoun reports whether query refers back with a whole-word pronoun.
func HasPronoun(query string) bool {
	return pronounWord.MatchString(query)
}

// ResolvePronouns appends the most recently mentioned coin to a query that
// uses a pronoun. turns are ordered oldest first.
func ResolvePronouns(query string, turns []persistence.Turn) string {
	if !HasPronoun(query) || strings.Contains(query, "(context:") {
		return query
	}

	start := len(turns) - pronounLookback
	if start < 0 {
		start = 0
	}
	for i := len(turns) - 1; i >= start; i-- {
		if coin := turns[i].Coin; coin != "" {
			return fmt.Sprintf("%s (context: referring to %s)", query, coin)
		}
	}
	return query
}
