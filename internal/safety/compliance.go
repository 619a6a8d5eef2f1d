package safety

import (
	"context"
	"strings"
	"unicode"

	"herald/internal/store"
	"herald/pkg/models"
)

// defaultBannedPhrases trip the compliance check outright. These are claims a
// brand account must never make. SAFETY_BANNED_PHRASES extends the list.
var defaultBannedPhrases = []string{
	"guaranteed returns",
	"financial advice",
	"not financial advice",
	"get rich",
	"100% safe",
	"can't lose",
	"dm me",
	"click here now",
	"limited time offer",
}

const maxHashtags = 5

// minMaterialRunes guards against generating from a near-empty digest
const minMaterialRunes = 80

// checkCompliance applies the rule-based policy to the curated material:
// banned phrases, hashtag spam, shouting and a length sanity floor
func (c *Checker) checkCompliance(ctx context.Context, platform, material string) (models.SafetyLog, error) {
	var issues []string
	lower := strings.ToLower(material)

	for _, phrase := range c.bannedPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, "banned phrase: "+phrase)
		}
	}

	if len([]rune(strings.TrimSpace(material))) < minMaterialRunes {
		issues = append(issues, "insufficient source material")
	}
	if strings.Count(material, "#") > maxHashtags {
		issues = append(issues, "too many hashtags")
	}
	if isShouting(material) {
		issues = append(issues, "excessive capitalization")
	}

	log := models.SafetyLog{
		CheckType: models.CheckCompliance,
		Status:    models.SafetyPass,
	}
	if len(issues) > 0 {
		log.Status = models.SafetyFail
		log.Issues = models.JSONB{"issues": issues}
	}
	return log, nil
}

// isShouting reports whether most letters in a reasonably long text are upper
// case
func isShouting(content string) bool {
	var letters, upper int
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters > 30 && float64(upper)/float64(letters) > 0.6
}

// checkDuplicate compares the material against recent posts on the same
// platform using word-set overlap
func (c *Checker) checkDuplicate(ctx context.Context, platform, material string) (models.SafetyLog, error) {
	log := models.SafetyLog{
		CheckType: models.CheckDuplicate,
		Status:    models.SafetyPass,
	}

	// exact hash hit is an immediate fail
	hash := store.ContentHash(material)
	seen, err := c.store.HasContentHash(ctx, hash, c.dupWindow)
	if err != nil {
		return models.SafetyLog{}, err
	}
	if seen {
		log.Status = models.SafetyFail
		log.Issues = models.JSONB{"issues": []string{"identical content already posted"}}
		return log, nil
	}

	recent, err := c.store.RecentPostContents(ctx, platform, c.dupWindow)
	if err != nil {
		return models.SafetyLog{}, err
	}

	var worst float64
	for _, prior := range recent {
		if sim := jaccard(material, prior); sim > worst {
			worst = sim
		}
	}
	log.Score = worst
	if worst >= c.dupThreshold {
		log.Status = models.SafetyFail
		log.Issues = models.JSONB{"issues": []string{"too similar to a recent post"}}
	}
	return log, nil
}

// jaccard computes word-set overlap between two texts, case-insensitive
func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var intersection int
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}
