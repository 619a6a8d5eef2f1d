package kafka

import (
	"time"
)

// Topic carries every pipeline lifecycle event
const EventsTopic = "herald_events"

// Pipeline event types
const (
	EventPipelineRunStarted  = "pipeline.run.started"
	EventPipelineRunFinished = "pipeline.run.finished"
	EventContentCurated      = "content.curated"
	EventContentRejected     = "content.rejected"
	EventPostPublished       = "post.published"
	EventPostFailed          = "post.failed"
)

// Event represents a pipeline lifecycle event
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	RunID     string                 `json:"run_id,omitempty"`
	Platform  string                 `json:"platform,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher is the event publishing surface the pipeline depends on.
// A nil Publisher is valid and drops events.
type Publisher interface {
	PublishEvent(event Event) error
	Close() error
}
