package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationMetrics_Creation(t *testing.T) {
	m, err := NewGenerationMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m.requestsCounter)
	assert.NotNil(t, m.failuresCounter)
	assert.NotNil(t, m.durationHistogram)
	assert.NotNil(t, m.promptTokens)
	assert.NotNil(t, m.activeGauge)
}

func TestGenerationMetrics_Record(t *testing.T) {
	m, err := NewGenerationMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("completed request", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordStarted(ctx, OpGenerate, 1200)
			m.RecordCompleted(ctx, OpGenerate, 3*time.Second)
		})
	})

	t.Run("failed request", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordStarted(ctx, OpRefine, 0)
			m.RecordFailed(ctx, OpRefine, "empty_result", 500*time.Millisecond)
		})
	})
}

func TestGenerationMetrics_NilIsNoop(t *testing.T) {
	var m *GenerationMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordStarted(ctx, OpHealth, 10)
		m.RecordCompleted(ctx, OpHealth, time.Second)
		m.RecordFailed(ctx, OpHealth, "gateway", time.Second)
	})
}

func TestGenerationMetrics_ConcurrentRecording(t *testing.T) {
	m, err := NewGenerationMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.RecordStarted(ctx, OpGenerate, id*100)
			if id%2 == 0 {
				m.RecordCompleted(ctx, OpGenerate, time.Duration(id)*time.Millisecond)
			} else {
				m.RecordFailed(ctx, OpGenerate, "gateway", time.Duration(id)*time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
}
