package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"copilot-orchestrator/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func retryAll(error) resilience.ErrorClassification {
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func fastConfig() resilience.Config {
	return resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestExecutor_RetriesUntilSuccess(t *testing.T) {
	exec := resilience.NewExecutor(fastConfig(), nil)

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, retryAll)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecutor_ExhaustsAttempts(t *testing.T) {
	exec := resilience.NewExecutor(fastConfig(), nil)

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errFlaky
	}, retryAll)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestExecutor_NonRetryableStopsImmediately(t *testing.T) {
	exec := resilience.NewExecutor(fastConfig(), nil)

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errFlaky
	}, func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestExecutor_ContextCancellationStopsRetry(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialBackoff = 200 * time.Millisecond
	cfg.MaxBackoff = time.Second
	exec := resilience.NewExecutor(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := exec.Execute(ctx, "op", func(context.Context) error {
		calls++
		return errFlaky
	}, retryAll)

	assert.ErrorIs(t, err, errFlaky, "the operation error is preserved over the context error")
	assert.Equal(t, 1, calls)
}

func TestExecutor_BreakerOpensAfterFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.FailureRatio = 0.5
	cfg.MinRequests = 2
	cfg.Cooldown = time.Minute
	exec := resilience.NewExecutor(cfg, nil)

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errFlaky
		}, retryAll)
		require.Error(t, err)
	}

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, retryAll)

	require.Error(t, err)
	assert.True(t, resilience.IsCircuitOpen(err))
	assert.Zero(t, calls, "open breaker must not invoke the operation")
}

func TestExecutor_BreakerIgnoresNonRecordedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.FailureRatio = 0.5
	cfg.MinRequests = 2
	exec := resilience.NewExecutor(cfg, nil)

	benign := func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	for i := 0; i < 5; i++ {
		_ = exec.Execute(context.Background(), "op", func(context.Context) error {
			return errFlaky
		}, benign)
	}

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, benign)

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}
