package predmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/iwho"
)

type fixedPredictor struct {
	key   string
	value float64
	delay time.Duration
	err   error
}

func (f fixedPredictor) Key() string { return f.key }

func (f fixedPredictor) Predict(ctx context.Context, bb *iwho.ConcreteBlock) (float64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.value, f.err
}

func TestEvaluateIsPositionallyAligned(t *testing.T) {
	m := NewInProcessManager([]Predictor{fixedPredictor{key: "p", value: 3.5}}, nil, 0, 4)
	blocks := []*iwho.ConcreteBlock{{}, {}, {}}
	readings, err := m.Evaluate(context.Background(), "p", blocks)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	for _, r := range readings {
		assert.False(t, r.Failed)
		assert.Equal(t, 3.5, r.TP)
	}
}

func TestEvaluateTimeoutIsFailure(t *testing.T) {
	m := NewInProcessManager([]Predictor{fixedPredictor{key: "slow", value: 1, delay: 50 * time.Millisecond}}, nil, 5*time.Millisecond, 1)
	readings, err := m.Evaluate(context.Background(), "slow", []*iwho.ConcreteBlock{{}})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.True(t, readings[0].Failed)
}

func TestEvaluateNonPositiveTPIsFailure(t *testing.T) {
	m := NewInProcessManager([]Predictor{fixedPredictor{key: "bad", value: -1}}, nil, 0, 1)
	readings, err := m.Evaluate(context.Background(), "bad", []*iwho.ConcreteBlock{{}})
	require.NoError(t, err)
	assert.True(t, readings[0].Failed)
}

func TestResolveKeyPatternsSortsAndDeduplicates(t *testing.T) {
	m := NewInProcessManager([]Predictor{
		fixedPredictor{key: "uica.0"},
		fixedPredictor{key: "uica.1"},
		fixedPredictor{key: "ithemal.0"},
	}, nil, 0, 0)
	keys, err := m.ResolveKeyPatterns([]string{"^uica\\.", "^uica\\.0$"})
	require.NoError(t, err)
	assert.Equal(t, []string{"uica.0", "uica.1"}, keys)
}
