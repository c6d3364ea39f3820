package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepStatsFailureRate(t *testing.T) {
	t.Run("empty step has zero failure rate", func(t *testing.T) {
		assert.Zero(t, StepStats{}.FailureRate())
	})

	t.Run("empty outcomes do not count as failures", func(t *testing.T) {
		stats := StepStats{Selected: 10, Succeeded: 4, Empty: 6}
		assert.Zero(t, stats.FailureRate())
	})

	t.Run("rejected transient and failed all count", func(t *testing.T) {
		stats := StepStats{Selected: 10, Succeeded: 5, Rejected: 2, Transient: 2, Failed: 1}
		assert.InDelta(t, 0.5, stats.FailureRate(), 1e-9)
	})
}
