package providers

import (
	"context"
	"fmt"
	"time"
)

// StaticAdapter answers deterministically without any network call. It backs
// local development when no remote provider is configured and keeps
// integration-style tests hermetic.
type StaticAdapter struct {
	name  string
	model string
	delay time.Duration
}

// NewStaticAdapter creates a static adapter for the given provider name
func NewStaticAdapter(name string) *StaticAdapter {
	return &StaticAdapter{
		name:  name,
		model: "static-echo-1",
	}
}

// SetDelay makes Execute wait before answering, for latency simulation
func (a *StaticAdapter) SetDelay(d time.Duration) {
	a.delay = d
}

// Name returns the provider name
func (a *StaticAdapter) Name() string {
	return a.name
}

// Execute returns a deterministic echo of the request
func (a *StaticAdapter) Execute(ctx context.Context, req *Request) (*NormalizedResponse, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resp := &NormalizedResponse{
		Content: fmt.Sprintf("echo from %s: %s", a.name, req.Message),
		Mode:    req.Mode,
		Model:   a.model,
	}
	if req.Mode == ModeDeep {
		resp.ReasoningTrace = fmt.Sprintf("received %d history turns, echoing the latest message", len(req.History))
	}

	return resp, nil
}
