package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// instrumentedProvider wraps a Provider and records request counts and
// durations labeled by the calling stage
type instrumentedProvider struct {
	inner    Provider
	purpose  string
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Instrument wraps a provider with request metrics. purpose labels which
// pipeline stage issued the call.
func Instrument(p Provider, purpose string, requests *prometheus.CounterVec, duration *prometheus.HistogramVec) Provider {
	if requests == nil || duration == nil {
		return p
	}
	return &instrumentedProvider{inner: p, purpose: purpose, requests: requests, duration: duration}
}

func (p *instrumentedProvider) Complete(ctx context.Context, req Request) (Stream, error) {
	start := time.Now()
	stream, err := p.inner.Complete(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
		p.duration.WithLabelValues(p.purpose).Observe(time.Since(start).Seconds())
		p.requests.WithLabelValues(p.purpose, status).Inc()
		return nil, err
	}
	p.requests.WithLabelValues(p.purpose, status).Inc()

	// the request is only done once the stream drains, so the duration is
	// observed on close
	return &instrumentedStream{Stream: stream, start: start, purpose: p.purpose, duration: p.duration}, nil
}

type instrumentedStream struct {
	Stream
	start    time.Time
	purpose  string
	duration *prometheus.HistogramVec
	observed bool
}

func (s *instrumentedStream) Close() error {
	if !s.observed {
		s.observed = true
		s.duration.WithLabelValues(s.purpose).Observe(time.Since(s.start).Seconds())
	}
	return s.Stream.Close()
}
