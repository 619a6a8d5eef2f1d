package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"herald/internal/curator"
	"herald/internal/generator"
	"herald/internal/poster"
	"herald/internal/safety"
	"herald/internal/store"
	"herald/pkg/config"
	"herald/pkg/kafka"
	"herald/pkg/logging"
	"herald/pkg/models"
	"herald/pkg/monitoring"
)

// Pipeline wires curation, safety, generation and posting into one linear
// flow and tracks its runs
type Pipeline struct {
	store     *store.Store
	curator   *curator.Curator
	checker   *safety.Checker
	generator *generator.Generator
	poster    *poster.Poster
	events    kafka.Publisher
	logger    logging.Logger

	platforms []string
	interval  time.Duration
	tracker   *runTracker

	runsTotal     *prometheus.CounterVec
	itemsTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// Deps bundles the pipeline's collaborators
type Deps struct {
	Store     *store.Store
	Curator   *curator.Curator
	Checker   *safety.Checker
	Generator *generator.Generator
	Poster    *poster.Poster
	Events    kafka.Publisher
	Metrics   *monitoring.MetricsCollector
	Logger    logging.Logger
}

// New creates the pipeline. PIPELINE_INTERVAL sets the scheduled cadence and
// PIPELINE_PLATFORMS which platforms each run targets.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		store:     deps.Store,
		curator:   deps.Curator,
		checker:   deps.Checker,
		generator: deps.Generator,
		poster:    deps.Poster,
		events:    deps.Events,
		logger:    deps.Logger,
		platforms: config.GetEnvList("PIPELINE_PLATFORMS", []string{models.PlatformTwitter, models.PlatformLinkedIn}),
		interval:  config.GetEnvDuration("PIPELINE_INTERVAL", 6*time.Hour),
		tracker:   newRunTracker(50),
	}
	if deps.Metrics != nil {
		p.runsTotal, p.itemsTotal, p.stageDuration = deps.Metrics.CreatePipelineMetrics()
	}
	return p
}

// Start launches the scheduled loop. The first run happens after one full
// interval; manual triggers are available immediately via Trigger.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.WithFields(logging.Fields{"interval": p.interval.String()}).Info("Pipeline scheduler started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run := p.Trigger("schedule", nil, nil)
				p.logger.WithFields(logging.Fields{"run_id": run.ID}).Info("Scheduled pipeline run triggered")
			}
		}
	}()
}

// Trigger starts a run in the background and returns its tracking record.
// An empty platforms slice targets every configured platform; categories
// narrow curation to matching sources.
func (p *Pipeline) Trigger(trigger string, platforms, categories []string) Run {
	if len(platforms) == 0 {
		platforms = p.platforms
	}
	run := p.tracker.start(trigger)
	go p.execute(run.ID, trigger, platforms, categories)
	return run
}

// GetRun returns one run by id
func (p *Pipeline) GetRun(runID string) (Run, bool) {
	return p.tracker.get(runID)
}

// ListRuns returns recent runs, newest first
func (p *Pipeline) ListRuns() []Run {
	return p.tracker.list()
}

func (p *Pipeline) execute(runID, trigger string, platforms, categories []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	p.publishEvent(kafka.Event{Type: kafka.EventPipelineRunStarted, RunID: runID, Data: map[string]interface{}{"trigger": trigger}})

	stats, err := p.runOnce(ctx, runID, platforms, categories)
	p.tracker.finish(runID, stats, err)

	status := RunCompleted
	if err != nil {
		status = RunFailed
		p.logger.WithFields(logging.Fields{"run_id": runID, "error": err}).Error("Pipeline run failed")
	}
	if p.runsTotal != nil {
		p.runsTotal.WithLabelValues(status).Inc()
	}
	p.publishEvent(kafka.Event{
		Type:  kafka.EventPipelineRunFinished,
		RunID: runID,
		Data: map[string]interface{}{
			"status": status,
			"stats":  stats,
		},
	})
}

// runOnce executes the linear flow: drain posts deferred by earlier runs,
// curate, then per platform safety-screen, generate, persist and publish
func (p *Pipeline) runOnce(ctx context.Context, runID string, platforms, categories []string) (RunStats, error) {
	var stats RunStats

	// posts rate-limited out of a previous cycle go first
	drained, err := timedStage(p, "drain", func() (int, error) {
		return p.poster.PublishPending(ctx)
	})
	if err != nil {
		p.logger.WithFields(logging.Fields{"run_id": runID, "error": err}).Warn("Failed to drain deferred posts")
	}
	stats.PostsPublished += drained

	digest, err := timedStage(p, "curate", func() (*curator.Digest, error) {
		return p.curator.Curate(ctx, categories...)
	})
	if err != nil {
		return stats, fmt.Errorf("curation failed: %w", err)
	}
	stats.ArticlesCurated = len(digest.Items)
	p.countItems("curate", "accepted", len(digest.Items))
	for _, item := range digest.Items {
		p.publishEvent(kafka.Event{
			Type:  kafka.EventContentCurated,
			RunID: runID,
			Data:  map[string]interface{}{"source_id": item.SourceID, "title": item.Article.Title},
		})
	}

	sourceID := firstSourceID(digest)
	for _, platform := range platforms {
		if err := p.producePost(ctx, runID, platform, sourceID, digest, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			p.logger.WithFields(logging.Fields{
				"run_id":   runID,
				"platform": platform,
				"error":    err,
			}).Error("Platform flow failed")
			stats.PostsFailed++
		}
	}

	if stats.DraftsGenerated == 0 {
		return stats, fmt.Errorf("no drafts survived safety and generation")
	}
	return stats, nil
}

// producePost runs the per-platform flow in order: the safety screen gates
// the generation call, and only screened material reaches the model
func (p *Pipeline) producePost(ctx context.Context, runID, platform string, sourceID *string, digest *curator.Digest, stats *RunStats) error {
	check, err := timedStage(p, "safety", func() (*safety.Result, error) {
		return p.checker.Check(ctx, sourceID, platform, digest.Material())
	})
	if err != nil {
		return fmt.Errorf("safety check errored: %w", err)
	}
	if !check.Passed {
		stats.DraftsRejected++
		p.countItems("safety", "rejected", 1)
		p.publishEvent(kafka.Event{
			Type:     kafka.EventContentRejected,
			RunID:    runID,
			Platform: platform,
		})
		return nil
	}
	p.countItems("safety", "accepted", 1)

	content, err := timedStage(p, "generate", func() (string, error) {
		return p.generator.Generate(ctx, platform, digest)
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	stats.DraftsGenerated++

	postID, err := p.store.CreatePost(ctx, models.PostHistory{
		SourceID: sourceID,
		Platform: platform,
		Content:  content,
		Status:   models.StatusGenerated,
	})
	if err != nil {
		return fmt.Errorf("failed to persist draft: %w", err)
	}

	post, err := p.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("draft %s missing after insert", postID)
	}
	if err := p.poster.PublishPost(ctx, *post); err != nil {
		stats.PostsFailed++
		p.publishEvent(kafka.Event{
			Type:     kafka.EventPostFailed,
			RunID:    runID,
			Platform: platform,
			Data:     map[string]interface{}{"post_id": postID, "error": err.Error()},
		})
		return err
	}
	stats.PostsPublished++
	p.publishEvent(kafka.Event{
		Type:     kafka.EventPostPublished,
		RunID:    runID,
		Platform: platform,
		Data:     map[string]interface{}{"post_id": postID},
	})
	return nil
}

func firstSourceID(digest *curator.Digest) *string {
	if len(digest.Items) > 0 && digest.Items[0].SourceID != "" {
		id := digest.Items[0].SourceID
		return &id
	}
	return nil
}

// timedStage runs one stage and records its duration
func timedStage[T any](p *Pipeline, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	if p.stageDuration != nil {
		p.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
	return out, err
}

func (p *Pipeline) countItems(stage, outcome string, n int) {
	if p.itemsTotal != nil {
		p.itemsTotal.WithLabelValues(stage, outcome).Add(float64(n))
	}
}

func (p *Pipeline) publishEvent(event kafka.Event) {
	if p.events == nil {
		return
	}
	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UTC()
	event.Source = "herald"
	if err := p.events.PublishEvent(event); err != nil {
		p.logger.WithFields(logging.Fields{"type": event.Type, "error": err}).Warn("Failed to publish event")
	}
}
