package diarization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := NewSelector(DefaultSelectorConfig())
	require.NoError(t, err)
	return s
}

func windows(cfg ScaleConfig) []float64 {
	out := make([]float64, len(cfg.Scales))
	for i, sc := range cfg.Scales {
		out[i] = sc.Window
	}
	return out
}

func shifts(cfg ScaleConfig) []float64 {
	out := make([]float64, len(cfg.Scales))
	for i, sc := range cfg.Scales {
		out[i] = sc.Shift
	}
	return out
}

func TestSelectTierBoundaries(t *testing.T) {
	s := newDefaultSelector(t)

	short := s.Select(3599.9)
	assert.Equal(t, DefaultWindowLengths, windows(short))
	assert.Equal(t, DefaultShiftLengths, shifts(short))
	assert.Equal(t, DefaultMultiscaleWeights, short.Weights)
	assert.Equal(t, 64, short.BatchSize)

	long := s.Select(3600.0)
	assert.Equal(t, []float64{3.0, 2.5, 2.0, 1.5, 1.0}, windows(long))
	assert.Equal(t, DefaultShiftLengths, shifts(long))
	assert.Equal(t, DefaultMultiscaleWeights, long.Weights)
	assert.Equal(t, 64, long.BatchSize)

	assert.Equal(t, windows(long), windows(s.Select(10799.99)))

	veryLong := s.Select(10800.0)
	assert.Equal(t, []float64{3.0, 2.0, 1.0}, windows(veryLong))
	assert.Equal(t, []float64{0.75, 0.5, 0.25}, shifts(veryLong))
	assert.Equal(t, []float64{1.0, 1.0, 1.0}, veryLong.Weights)
	assert.Equal(t, 32, veryLong.BatchSize)
}

func TestDefaultBatchSizeByScaleCount(t *testing.T) {
	assert.Equal(t, 64, defaultBatchSize(5))
	assert.Equal(t, 64, defaultBatchSize(4))
	assert.Equal(t, 128, defaultBatchSize(3))
	assert.Equal(t, 128, defaultBatchSize(2))
	assert.Equal(t, 256, defaultBatchSize(1))
}

func TestSelectReturnsIndependentCopies(t *testing.T) {
	s := newDefaultSelector(t)
	first := s.Select(10)
	first.Weights[0] = 42
	first.Scales[0].Window = 42

	second := s.Select(10)
	assert.InDelta(t, 1.0, second.Weights[0], 1e-9)
	assert.InDelta(t, 1.5, second.Scales[0].Window, 1e-9)
	assert.InDelta(t, 1.0, DefaultMultiscaleWeights[0], 1e-9)
}

func TestNewSelectorRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*SelectorConfig){
		"mismatched weights": func(c *SelectorConfig) { c.MultiscaleWeights = []float64{1, 1} },
		"mismatched shifts":  func(c *SelectorConfig) { c.ShiftLengths = []float64{0.5} },
		"empty windows": func(c *SelectorConfig) {
			c.WindowLengths, c.ShiftLengths, c.MultiscaleWeights = nil, nil, nil
		},
		"three scales cannot pair with long windows": func(c *SelectorConfig) {
			c.WindowLengths = []float64{1.5, 1.0, 0.5}
			c.ShiftLengths = []float64{0.75, 0.5, 0.25}
			c.MultiscaleWeights = []float64{1, 1, 1}
		},
		"thresholds inverted": func(c *SelectorConfig) { c.VeryLongAudioSeconds = 100 },
		"zero shift":          func(c *SelectorConfig) { c.ShiftLengths = []float64{0.75, 0, 0.5, 0.375, 0.25} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultSelectorConfig()
			mutate(&cfg)
			_, err := NewSelector(cfg)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
		})
	}
}

func TestSelectorCustomThresholds(t *testing.T) {
	cfg := DefaultSelectorConfig()
	cfg.LongAudioSeconds = 60
	cfg.VeryLongAudioSeconds = 120
	s, err := NewSelector(cfg)
	require.NoError(t, err)

	assert.Equal(t, 64, s.Select(59).BatchSize)
	assert.Len(t, s.Select(60).Scales, 5)
	assert.Equal(t, 32, s.Select(120).BatchSize)
}
