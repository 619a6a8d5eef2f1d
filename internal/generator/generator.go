package generator

import (
	"context"
	"fmt"
	"strings"

	"herald/internal/curator"
	"herald/pkg/llm"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// ThreadSeparator splits a generated twitter thread into individual tweets
const ThreadSeparator = "[TWEET]"

const (
	// tweetTargetLength is what the prompt asks for; tweetHardLimit is what
	// the platform enforces
	tweetTargetLength = 250
	tweetHardLimit    = 280

	minThreadTweets = 3
	maxThreadTweets = 5

	linkedInTargetMin = 1500
	linkedInTargetMax = 2500
	linkedInHardLimit = 3000
)

// Generator turns a curation digest into platform-ready drafts
type Generator struct {
	provider llm.Provider
	logger   logging.Logger
}

// New creates a generator over an LLM provider
func New(provider llm.Provider, logger logging.Logger) *Generator {
	return &Generator{provider: provider, logger: logger}
}

// Generate produces a draft for the given platform
func (g *Generator) Generate(ctx context.Context, platform string, digest *curator.Digest) (string, error) {
	switch platform {
	case models.PlatformTwitter:
		return g.generateThread(ctx, digest)
	case models.PlatformLinkedIn:
		return g.generateLinkedIn(ctx, digest)
	default:
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
}

// SplitThread breaks thread content into its tweets, dropping empty segments
func SplitThread(content string) []string {
	var tweets []string
	for _, part := range strings.Split(content, ThreadSeparator) {
		part = strings.TrimSpace(part)
		if part != "" {
			tweets = append(tweets, part)
		}
	}
	return tweets
}

// generateThread asks for a 3-5 tweet thread and enforces per-tweet limits.
// Overlong tweets are dropped from the thread rather than reflowed.
func (g *Generator) generateThread(ctx context.Context, digest *curator.Digest) (string, error) {
	prompt := fmt.Sprintf(`Write a Twitter/X thread about today's top tech stories. Rules:
- %d to %d tweets
- Each tweet under %d characters
- Separate tweets with the marker %s on its own line
- First tweet hooks the reader; last tweet offers a takeaway
- Conversational but credible; at most one hashtag per tweet; no emojis in every tweet

Today's stories and trends:
%s`, minThreadTweets, maxThreadTweets, tweetTargetLength, ThreadSeparator, digestContext(digest))

	content, err := llm.CompleteText(ctx, g.provider, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a tech commentator with a sharp, informed voice."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("thread generation failed: %w", err)
	}

	tweets := SplitThread(content)
	kept := tweets[:0]
	for i, tweet := range tweets {
		if len([]rune(tweet)) > tweetHardLimit {
			g.logger.WithFields(logging.Fields{"tweet": i + 1}).Warn("Dropping overlong tweet")
			continue
		}
		kept = append(kept, tweet)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("model produced no usable tweets")
	}
	if len(kept) > maxThreadTweets {
		kept = kept[:maxThreadTweets]
	}
	return strings.Join(kept, "\n"+ThreadSeparator+"\n"), nil
}

// generateLinkedIn asks for a single long-form post within the platform limit
func (g *Generator) generateLinkedIn(ctx context.Context, digest *curator.Digest) (string, error) {
	prompt := fmt.Sprintf(`Write a LinkedIn post about today's tech news for an audience of engineers and founders. Rules:
- Between %d and %d characters
- Open with a strong first line; short paragraphs; end with a question to invite discussion
- Professional but human; 3-5 hashtags at the end only

Today's stories and trends:
%s`, linkedInTargetMin, linkedInTargetMax, digestContext(digest))

	content, err := llm.CompleteText(ctx, g.provider, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You write engaging professional commentary on the tech industry."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   1500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("linkedin generation failed: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("model produced empty post")
	}
	if len([]rune(content)) > linkedInHardLimit {
		g.logger.Warn("Truncating overlong LinkedIn post")
		content = truncateAtWord(content, linkedInHardLimit)
	}
	return content, nil
}

// digestContext renders the curation digest into prompt context
func digestContext(digest *curator.Digest) string {
	var b strings.Builder
	for i, item := range digest.Items {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n\n", i+1, item.Article.Title, item.Article.Source, item.Summary)
	}
	if digest.Trends != "" {
		b.WriteString("Trends:\n" + digest.Trends + "\n")
	}
	return b.String()
}

// truncateAtWord cuts text to at most limit runes, backing up to the last
// word boundary when one exists nearby
func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit-1])
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \n\t.,;:") + "…"
}
