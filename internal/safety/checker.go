package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"herald/internal/store"
	"herald/pkg/config"
	"herald/pkg/llm"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// Result is the outcome of a full safety pass over one item
type Result struct {
	Passed bool
	Logs   []models.SafetyLog
}

// Checker screens curated material before any generation happens. Material
// that fails here never reaches the model.
type Checker struct {
	store    *store.Store
	provider llm.Provider
	logger   logging.Logger

	dupWindow     time.Duration
	dupThreshold  float64
	bannedPhrases []string
}

// New creates a checker. The duplicate window defaults to 7 days and can be
// tuned with SAFETY_DUP_DAYS; SAFETY_BANNED_PHRASES adds comma-separated
// terms to the compiled-in banned list.
func New(st *store.Store, provider llm.Provider, logger logging.Logger) *Checker {
	banned := append([]string(nil), defaultBannedPhrases...)
	for _, phrase := range config.GetEnvList("SAFETY_BANNED_PHRASES", nil) {
		banned = append(banned, strings.ToLower(phrase))
	}

	return &Checker{
		store:         st,
		provider:      provider,
		logger:        logger,
		dupWindow:     time.Duration(config.GetEnvInt("SAFETY_DUP_DAYS", 7)) * 24 * time.Hour,
		dupThreshold:  0.7,
		bannedPhrases: banned,
	}
}

// Check runs moderation, compliance and duplicate checks on curated material
// before it is handed to the generator. Every check result is persisted to
// the safety log; a single failure rejects the item. A moderation backend
// error fails closed.
func (c *Checker) Check(ctx context.Context, sourceID *string, platform, content string) (*Result, error) {
	result := &Result{Passed: true}

	checks := []struct {
		name string
		run  func(context.Context, string, string) (models.SafetyLog, error)
	}{
		{models.CheckModeration, c.moderate},
		{models.CheckCompliance, c.checkCompliance},
		{models.CheckDuplicate, c.checkDuplicate},
	}

	for _, check := range checks {
		log, err := check.run(ctx, platform, content)
		if err != nil {
			return nil, fmt.Errorf("%s check failed: %w", check.name, err)
		}
		log.SourceID = sourceID

		if err := c.store.AddSafetyLog(ctx, log); err != nil {
			c.logger.WithFields(logging.Fields{
				"check": check.name,
				"error": err,
			}).Warn("Failed to persist safety log")
		}
		result.Logs = append(result.Logs, log)
		if log.Status == models.SafetyFail {
			result.Passed = false
		}
	}

	if !result.Passed {
		c.logger.WithFields(logging.Fields{"platform": platform}).Info("Material rejected by safety checks")
	}
	return result, nil
}

// moderationVerdict is the JSON shape the moderation prompt asks for
type moderationVerdict struct {
	Safe   bool     `json:"safe"`
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
}

// moderate asks the model whether the material is brand-safe. The verdict
// JSON is pulled out of the response even when the model wraps it in prose.
func (c *Checker) moderate(ctx context.Context, platform, content string) (models.SafetyLog, error) {
	prompt := fmt.Sprintf(`Review this source material for a %s post for safety issues: hate speech, harassment, misinformation, unverifiable claims stated as fact, or content that would embarrass a professional tech brand.

Respond with only a JSON object: {"safe": true/false, "score": 0.0-1.0, "issues": ["..."]} where score is your confidence the material is safe.

Material:
%s`, platform, content)

	response, err := llm.CompleteText(ctx, c.provider, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a strict content safety reviewer. Respond only with JSON."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   300,
		Temperature: 0,
	})
	if err != nil {
		return models.SafetyLog{}, err
	}

	verdict, err := parseVerdict(response)
	if err != nil {
		return models.SafetyLog{}, fmt.Errorf("unparseable moderation verdict: %w", err)
	}

	log := models.SafetyLog{
		CheckType: models.CheckModeration,
		Status:    models.SafetyPass,
		Score:     verdict.Score,
	}
	if !verdict.Safe {
		log.Status = models.SafetyFail
	}
	if len(verdict.Issues) > 0 {
		log.Issues = models.JSONB{"issues": verdict.Issues}
	}
	return log, nil
}

// parseVerdict extracts the first JSON object from a model response
func parseVerdict(response string) (*moderationVerdict, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var verdict moderationVerdict
	if err := json.Unmarshal([]byte(response[start:end+1]), &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}
