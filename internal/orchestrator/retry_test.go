package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entgraph/entgraph/pkg/models"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: 200 * time.Millisecond, BackoffFactor: 2.0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{2, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, BackoffFactor: 2.0}
	want := &models.Finding{Step: "identify", Confidence: 0.9}

	res := withRetry(context.Background(), policy, "identify", func(ctx context.Context) (*models.Finding, error) {
		return want, nil
	})
	if res.err != nil {
		t.Fatalf("err = %v, want nil", res.err)
	}
	if res.finding != want {
		t.Error("finding was not passed through")
	}
	if res.attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.attempts)
	}
}

func TestWithRetryPermanentNotRetried(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, BackoffFactor: 2.0}
	calls := 0

	res := withRetry(context.Background(), policy, "identify", func(ctx context.Context) (*models.Finding, error) {
		calls++
		return nil, models.Permanent("identify", errors.New("no such entity"))
	})
	if res.err == nil {
		t.Fatal("expected a permanent error")
	}
	if calls != 1 || res.attempts != 1 {
		t.Errorf("calls = %d, attempts = %d, want 1 and 1", calls, res.attempts)
	}
}

func TestWithRetryTransientRecovers(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, BackoffFactor: 2.0}
	calls := 0

	res := withRetry(context.Background(), policy, "webdata", func(ctx context.Context) (*models.Finding, error) {
		calls++
		if calls < 3 {
			return nil, models.Transient("webdata", errors.New("upstream hiccup"))
		}
		return &models.Finding{Step: "webdata"}, nil
	})
	if res.err != nil {
		t.Fatalf("err = %v, want recovery", res.err)
	}
	if res.attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.attempts)
	}
}

func TestWithRetryExhaustsPolicy(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, BackoffFactor: 2.0}
	calls := 0

	res := withRetry(context.Background(), policy, "news", func(ctx context.Context) (*models.Finding, error) {
		calls++
		return nil, models.Transient("news", errors.New("press feed down"))
	})
	if res.err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != 3 || res.attempts != 3 {
		t.Errorf("calls = %d, attempts = %d, want MaxRetries+1 = 3", calls, res.attempts)
	}
}

func TestWithRetryStopsOnCancellation(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, BackoffFactor: 2.0}
	ctx, cancel := context.WithCancel(context.Background())

	res := withRetry(ctx, policy, "news", func(ctx context.Context) (*models.Finding, error) {
		cancel()
		return nil, models.Transient("news", errors.New("press feed down"))
	})
	if !errors.Is(res.err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", res.err)
	}
	if res.attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.attempts)
	}
}
