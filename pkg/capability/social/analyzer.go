// Package social analyzes X/Twitter posts by URL.
package social

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

// ErrInvalidURL is returned when the input holds no X/Twitter status URL.
var ErrInvalidURL = errors.New("invalid X/Twitter URL")

//nolint:gochecknoglobals // compiled once
var (
	postURL  = regexp.MustCompile(`(?i)(https?://)?(www\.|mobile\.)?(x|twitter)\.com/[^\s]+`)
	statusID = regexp.MustCompile(`status(?:es)?/(\d+)`)
)

const analysisPrompt = `Analyze this X/Twitter post URL: %s

Provide a concise analysis in 3-4 sentences covering:
- Content summary
- Crypto market implications (if any)
- Credibility assessment
- Key takeaways

Always respond in English. If you cannot access the post directly, give general guidance for assessing crypto posts like it.`

// Analyzer sends post URLs to a reasoner.
type Analyzer struct {
	reasoner roma.Reasoner
}

// New creates an analyzer. A nil reasoner always yields the basic guidelines.
func New(reasoner roma.Reasoner) *Analyzer {
	return &Analyzer{reasoner: reasoner}
}

// ParsePost finds the post URL and status id in text.
func ParsePost(text string) (url, id string, err error) {
	url = postURL.FindString(text)
	if url == "" {
		return "", "", ErrInvalidURL
	}
	m := statusID.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("%w: no status id in %s", ErrInvalidURL, url)
	}
	return url, m[1], nil
}

// AnalyzePost implements roma.SocialAnalyzer. When the reasoner fails the
// result is a checklist for judging the post, not an error.
func (a *Analyzer) AnalyzePost(ctx context.Context, text string) (string, error) {
	url, id, err := ParsePost(text)
	if err != nil {
		return "", err
	}

	if a.reasoner != nil {
		analysis, err := a.reasoner.Reason(ctx, roma.Prompt{
			User:        fmt.Sprintf(analysisPrompt, url),
			Temperature: 0.3,
			MaxTokens:   200,
			Stage:       "social",
		})
		if err == nil {
			return fmt.Sprintf("**X/Twitter Post Analysis**\n\n**URL:** %s\n\n%s\n\n_Always verify crypto information from multiple sources._",
				url, analysis), nil
		}
		logx.Debug(ctx, "social", "analysis of post %s failed: %v", id, err)
	}

	return fmt.Sprintf(`**X/Twitter Post** (ID %s)

**URL:** %s

**Analysis Guidelines:**
- Verify information from multiple sources
- Check account credibility
- Be cautious of FOMO content
- Don't base investment decisions on single posts`, id, url), nil
}
