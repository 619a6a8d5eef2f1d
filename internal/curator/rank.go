package curator

import (
	"sort"
	"strings"
	"time"

	"herald/pkg/models"
)

// rankWeights maps topic keywords to relevance boosts. The weights skew
// toward AI and developer tooling coverage, matching the audience the posts
// are written for.
var rankWeights = map[string]float64{
	"ai":                      3.0,
	"artificial intelligence": 3.0,
	"machine learning":        2.5,
	"llm":                     2.5,
	"gpt":                     2.0,
	"openai":                  2.0,
	"open source":             2.0,
	"startup":                 1.5,
	"funding":                 1.0,
	"developer":               1.5,
	"programming":             1.5,
	"security":                1.5,
	"breach":                  1.5,
	"launch":                  1.0,
	"release":                 1.0,
	"research":                1.0,
	"robot":                   1.0,
	"chip":                    1.0,
	"quantum":                 1.0,
	"cloud":                   0.5,
}

// scoreArticle computes a relevance score from keyword hits plus a recency
// bonus. Title hits count double.
func scoreArticle(a models.Article, now time.Time) float64 {
	title := strings.ToLower(a.Title)
	summary := strings.ToLower(a.Summary)

	var score float64
	for keyword, weight := range rankWeights {
		if strings.Contains(title, keyword) {
			score += weight * 2
		}
		if strings.Contains(summary, keyword) {
			score += weight
		}
	}

	if !a.PublishedAt.IsZero() {
		age := now.Sub(a.PublishedAt)
		switch {
		case age < 6*time.Hour:
			score += 3
		case age < 24*time.Hour:
			score += 2
		case age < 48*time.Hour:
			score += 1
		}
	}
	return score
}

// rankArticles orders articles by descending relevance score. Ties keep the
// incoming (newest first) order.
func rankArticles(articles []models.Article, now time.Time) []models.Article {
	ranked := append([]models.Article(nil), articles...)
	scores := make(map[string]float64, len(ranked))
	for _, a := range ranked {
		scores[a.URL] = scoreArticle(a, now)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].URL] > scores[ranked[j].URL]
	})
	return ranked
}
