package diarization

import (
	"fmt"
)

const (
	DefaultLongAudioSeconds     = 3600.0
	DefaultVeryLongAudioSeconds = 10800.0
)

var (
	DefaultWindowLengths     = []float64{1.5, 1.25, 1.0, 0.75, 0.5}
	DefaultShiftLengths      = []float64{0.75, 0.625, 0.5, 0.375, 0.25}
	DefaultMultiscaleWeights = []float64{1, 1, 1, 1, 1}

	longWindowLengths = []float64{3.0, 2.5, 2.0, 1.5, 1.0}

	veryLongWindowLengths = []float64{3.0, 2.0, 1.0}
	veryLongShiftLengths  = []float64{0.75, 0.5, 0.25}
	veryLongWeights       = []float64{1.0, 1.0, 1.0}
)

const (
	longBatchSize     = 64
	veryLongBatchSize = 32
)

type Scale struct {
	Window float64 `json:"window"`
	Shift  float64 `json:"shift"`
}

// ScaleConfig is the multiscale embedding setup handed to the diarization
// model. Scales and Weights always have the same length.
type ScaleConfig struct {
	Scales    []Scale   `json:"scales"`
	Weights   []float64 `json:"multiscale_weights"`
	BatchSize int       `json:"batch_size"`
}

type SelectorConfig struct {
	WindowLengths        []float64
	ShiftLengths         []float64
	MultiscaleWeights    []float64
	LongAudioSeconds     float64
	VeryLongAudioSeconds float64
}

// ConfigError reports an unusable multiscale configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "diarization config: " + e.Reason
}

// Selector maps an audio duration onto a ScaleConfig.
type Selector struct {
	windows  []float64
	shifts   []float64
	weights  []float64
	long     float64
	veryLong float64
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		WindowLengths:        DefaultWindowLengths,
		ShiftLengths:         DefaultShiftLengths,
		MultiscaleWeights:    DefaultMultiscaleWeights,
		LongAudioSeconds:     DefaultLongAudioSeconds,
		VeryLongAudioSeconds: DefaultVeryLongAudioSeconds,
	}
}

// NewSelector validates cfg up front so Select never has to fail.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	n := len(cfg.WindowLengths)
	if n == 0 {
		return nil, &ConfigError{Reason: "window lengths must not be empty"}
	}
	if len(cfg.ShiftLengths) != n || len(cfg.MultiscaleWeights) != n {
		return nil, &ConfigError{Reason: fmt.Sprintf(
			"window (%d), shift (%d) and weight (%d) lists must have equal length",
			n, len(cfg.ShiftLengths), len(cfg.MultiscaleWeights))}
	}
	if len(cfg.ShiftLengths) != len(longWindowLengths) {
		return nil, &ConfigError{Reason: fmt.Sprintf(
			"shift lengths must have %d entries to pair with long-audio windows, got %d",
			len(longWindowLengths), len(cfg.ShiftLengths))}
	}
	for i := 0; i < n; i++ {
		if cfg.WindowLengths[i] <= 0 || cfg.ShiftLengths[i] <= 0 {
			return nil, &ConfigError{Reason: fmt.Sprintf("scale %d: window and shift must be > 0", i)}
		}
		if cfg.MultiscaleWeights[i] < 0 {
			return nil, &ConfigError{Reason: fmt.Sprintf("scale %d: weight must be >= 0", i)}
		}
	}
	if cfg.LongAudioSeconds <= 0 || cfg.VeryLongAudioSeconds <= cfg.LongAudioSeconds {
		return nil, &ConfigError{Reason: fmt.Sprintf(
			"thresholds must satisfy 0 < long (%v) < very long (%v)",
			cfg.LongAudioSeconds, cfg.VeryLongAudioSeconds)}
	}

	return &Selector{
		windows:  clone(cfg.WindowLengths),
		shifts:   clone(cfg.ShiftLengths),
		weights:  clone(cfg.MultiscaleWeights),
		long:     cfg.LongAudioSeconds,
		veryLong: cfg.VeryLongAudioSeconds,
	}, nil
}

// Select returns the configuration for audio of the given duration in
// seconds. Lower thresholds are inclusive.
func (s *Selector) Select(duration float64) ScaleConfig {
	switch {
	case duration >= s.veryLong:
		return newScaleConfig(veryLongWindowLengths, veryLongShiftLengths, veryLongWeights, veryLongBatchSize)
	case duration >= s.long:
		return newScaleConfig(longWindowLengths, s.shifts, s.weights, longBatchSize)
	default:
		return newScaleConfig(s.windows, s.shifts, s.weights, defaultBatchSize(len(s.weights)))
	}
}

func defaultBatchSize(scales int) int {
	switch {
	case scales > 3:
		return 64
	case scales > 1:
		return 128
	default:
		return 256
	}
}

func newScaleConfig(windows, shifts, weights []float64, batch int) ScaleConfig {
	scales := make([]Scale, len(windows))
	for i := range windows {
		scales[i] = Scale{Window: windows[i], Shift: shifts[i]}
	}
	return ScaleConfig{Scales: scales, Weights: clone(weights), BatchSize: batch}
}

func clone(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
