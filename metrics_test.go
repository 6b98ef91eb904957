package hogwild

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/hogwild/internal/numa"
)

func TestBasicMetricsCollector(t *testing.T) {
	b := &BasicMetricsCollector{}

	assert.True(t, math.IsNaN(b.GetStats().Accuracy))

	b.RecordLoad("train", 10, 4096, time.Millisecond, nil)
	b.RecordLoad("test", 0, 0, time.Millisecond, errors.New("boom"))
	b.RecordEpoch(1, 2*time.Second, 3*time.Millisecond, 30)
	b.RecordEpoch(2, 4*time.Second, time.Millisecond, 30)
	b.RecordEvaluation(1, 0.5, 0.7)
	b.RecordEvaluation(0, 0.9, 0.1)

	s := b.GetStats()
	assert.Equal(t, int64(2), s.LoadCount)
	assert.Equal(t, int64(1), s.LoadErrors)
	assert.Equal(t, int64(10), s.LoadedExamples)
	assert.Equal(t, int64(2), s.EpochCount)
	assert.Equal(t, 2, s.LastEpoch)
	assert.Equal(t, 3*time.Second, s.AvgTrain)
	assert.Equal(t, 3*time.Millisecond, s.MaxSkew)
	assert.Equal(t, int64(60), s.Updates)
	assert.Equal(t, 0.9, s.Accuracy)
	assert.Equal(t, 0.1, s.Loss)
}

func TestNoopMetricsCollector(t *testing.T) {
	var mc MetricsCollector = NoopMetricsCollector{}
	assert.NotPanics(t, func() {
		mc.RecordLoad("train", 1, 1, time.Millisecond, nil)
		mc.RecordEpoch(1, time.Second, 0, 1)
		mc.RecordEvaluation(0, 1, 0)
	})
}

func TestTranslateError(t *testing.T) {
	t.Run("Passthrough", func(t *testing.T) {
		err := errors.New("other")
		assert.Equal(t, err, translateError(err))
		assert.NoError(t, translateError(nil))
	})

	t.Run("TopologyWrapped", func(t *testing.T) {
		var te *TopologyError
		assert.ErrorAs(t, translateError(fmt.Errorf("bind: %w", numa.ErrUnavailable)), &te)
	})
}
