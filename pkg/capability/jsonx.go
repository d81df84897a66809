package capability

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when model output holds no parseable JSON value.
var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractJSON pulls the first JSON object or array out of model output,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(text string) (gjson.Result, error) {
	s := strings.TrimSpace(text)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	if gjson.Valid(s) {
		if r := gjson.Parse(s); r.IsObject() || r.IsArray() {
			return r, nil
		}
	}

	// Whichever bracket opens first encloses the other.
	pairs := [][2]byte{{'{', '}'}, {'[', ']'}}
	if arr, obj := strings.IndexByte(s, '['), strings.IndexByte(s, '{'); arr >= 0 && (obj < 0 || arr < obj) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, pair := range pairs {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start < 0 || end <= start {
			continue
		}
		if candidate := s[start : end+1]; gjson.Valid(candidate) {
			return gjson.Parse(candidate), nil
		}
	}
	return gjson.Result{}, ErrNoJSON
}
