package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// MockAdapter is a scriptable test implementation of the Adapter interface
type MockAdapter struct {
	name          string
	response      *NormalizedResponse
	err           error
	responseDelay time.Duration
	calls         int
}

func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name: name,
		response: &NormalizedResponse{
			Content: "This is a mock response",
			Model:   "mock-model-1",
		},
	}
}

func (m *MockAdapter) SetError(err error) {
	m.err = err
}

func (m *MockAdapter) SetResponseDelay(delay time.Duration) {
	m.responseDelay = delay
}

func (m *MockAdapter) Calls() int {
	return m.calls
}

func (m *MockAdapter) Name() string {
	return m.name
}

func (m *MockAdapter) Execute(ctx context.Context, req *Request) (*NormalizedResponse, error) {
	m.calls++

	if m.responseDelay > 0 {
		select {
		case <-time.After(m.responseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.err != nil {
		return nil, m.err
	}

	resp := *m.response
	resp.Mode = req.Mode
	return &resp, nil
}

func TestMockAdapter(t *testing.T) {
	adapter := NewMockAdapter("test-provider")

	t.Run("Name", func(t *testing.T) {
		if adapter.Name() != "test-provider" {
			t.Errorf("Name() = %s, want test-provider", adapter.Name())
		}
	})

	t.Run("Execute", func(t *testing.T) {
		ctx := context.Background()
		req := &Request{
			Message: "Hello",
			Mode:    ModeFast,
			History: []Message{{Role: "user", Content: "earlier"}},
		}

		resp, err := adapter.Execute(ctx, req)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		if resp.Content == "" {
			t.Error("Response content is empty")
		}

		if resp.Mode != ModeFast {
			t.Errorf("Mode = %s, want fast", resp.Mode)
		}

		if resp.Model == "" {
			t.Error("Model not set")
		}
	})

	t.Run("ExecuteError", func(t *testing.T) {
		failing := NewMockAdapter("failing")
		failing.SetError(NewNetworkError("failing", errors.New("connection refused")))

		_, err := failing.Execute(context.Background(), &Request{Message: "hi", Mode: ModeFast})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestValidMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want bool
	}{
		{ModeFast, true},
		{ModeDeep, true},
		{Mode(""), false},
		{Mode("slow"), false},
		{Mode("FAST"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := ValidMode(tt.mode); got != tt.want {
				t.Errorf("ValidMode(%q) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestProviderError(t *testing.T) {
	t.Run("NetworkError", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewNetworkError("openai", cause)

		if err.Provider != "openai" {
			t.Errorf("Provider = %s, want openai", err.Provider)
		}

		if err.Kind != ErrorKindNetwork {
			t.Errorf("Kind = %s, want network", err.Kind)
		}

		if err.Unwrap() != cause {
			t.Error("Unwrap() did not return the cause")
		}
	})

	t.Run("AuthError", func(t *testing.T) {
		err := NewAuthError("openai", 401)

		if err.Kind != ErrorKindAuth {
			t.Errorf("Kind = %s, want auth", err.Kind)
		}

		if err.StatusCode != 401 {
			t.Errorf("StatusCode = %d, want 401", err.StatusCode)
		}
	})

	t.Run("RateLimitError", func(t *testing.T) {
		err := NewRateLimitError("groq", 429)

		if err.Kind != ErrorKindRateLimit {
			t.Errorf("Kind = %s, want rate_limit", err.Kind)
		}
	})

	t.Run("MalformedResponseError", func(t *testing.T) {
		err := NewMalformedResponseError("ollama", "response contained no choices", nil)

		if err.Kind != ErrorKindMalformedResponse {
			t.Errorf("Kind = %s, want malformed_response", err.Kind)
		}

		if err.Error() != "ollama: response contained no choices" {
			t.Errorf("Error() = %s", err.Error())
		}
	})

	t.Run("ErrorMethodWithCause", func(t *testing.T) {
		cause := errors.New("EOF")
		err := NewNetworkError("openai", cause)

		want := "openai: request failed: EOF"
		if err.Error() != want {
			t.Errorf("Error() = %s, want %s", err.Error(), want)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", NewNetworkError("p", errors.New("refused")), true},
		{"server error", NewServerError("p", 503), true},
		{"rate limit error", NewRateLimitError("p", 429), true},
		{"auth error", NewAuthError("p", 401), false},
		{"malformed response", NewMalformedResponseError("p", "no choices", nil), false},
		{"wrapped network error", fmt.Errorf("dispatch: %w", NewNetworkError("p", errors.New("reset"))), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewAuthError("p", 403)); got != ErrorKindAuth {
		t.Errorf("KindOf() = %s, want auth", got)
	}

	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf() = %s, want empty", got)
	}
}

func TestContextCancellation(t *testing.T) {
	adapter := NewMockAdapter("test")
	adapter.SetResponseDelay(1 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := adapter.Execute(ctx, &Request{Message: "test", Mode: ModeFast})
	if err == nil {
		t.Error("Expected context cancellation error")
	}

	if err != context.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestStaticAdapter(t *testing.T) {
	adapter := NewStaticAdapter("local")

	t.Run("FastMode", func(t *testing.T) {
		resp, err := adapter.Execute(context.Background(), &Request{
			Message: "hello there",
			Mode:    ModeFast,
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		if resp.Content != "echo from local: hello there" {
			t.Errorf("Content = %q", resp.Content)
		}

		if resp.ReasoningTrace != "" {
			t.Error("fast mode should not carry a reasoning trace")
		}
	})

	t.Run("DeepMode", func(t *testing.T) {
		resp, err := adapter.Execute(context.Background(), &Request{
			Message: "hello",
			Mode:    ModeDeep,
			History: []Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}},
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		if resp.ReasoningTrace == "" {
			t.Error("deep mode should carry a reasoning trace")
		}
	})

	t.Run("Cancellation", func(t *testing.T) {
		slow := NewStaticAdapter("slow")
		slow.SetDelay(time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, err := slow.Execute(ctx, &Request{Message: "x", Mode: ModeFast}); err == nil {
			t.Error("expected cancellation error")
		}
	})
}
