package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/pageza/kitchen-assistant/backend/internal/retry"
)

func TestObserveAttempt(t *testing.T) {
	success := ProviderAttempts.WithLabelValues("vision", "success", "")
	failed := ProviderAttempts.WithLabelValues("vision", "retryable_failure", "rate_limit")
	beforeSuccess := testutil.ToFloat64(success)
	beforeFailed := testutil.ToFloat64(failed)

	ObserveAttempt(retry.Attempt{Operation: "vision", Outcome: retry.Success})
	ObserveAttempt(retry.Attempt{
		Operation:      "vision",
		Outcome:        retry.RetryableFailure,
		Classification: retry.RateLimit,
		Err:            errors.New("rate_limit"),
	})

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}
