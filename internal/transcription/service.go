// Package transcription runs speech-to-text passes against a leased model
// replica, retrying once with relaxed decoding when a pass comes back
// empty.
package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"scribeflow/internal/transcript"
)

// VADParameters tune the model-internal voice activity filter.
type VADParameters struct {
	Threshold            float64 `json:"threshold"`
	MinSpeechDurationMS  int     `json:"min_speech_duration_ms"`
	MinSilenceDurationMS int     `json:"min_silence_duration_ms"`
	SpeechPadMS          int     `json:"speech_pad_ms"`
	WindowSizeSamples    int     `json:"window_size_samples"`
}

func DefaultVADParameters() VADParameters {
	return VADParameters{
		Threshold:            0.5,
		MinSpeechDurationMS:  250,
		MinSilenceDurationMS: 100,
		SpeechPadMS:          30,
		WindowSizeSamples:    512,
	}
}

// Options are the per-job decoding settings. The numeric thresholds are
// passed to the model as-is and never adjusted on retry.
type Options struct {
	Language                  string
	Vocab                     []string
	VADFilter                 bool
	VADParameters             VADParameters
	SuppressBlank             bool
	WordTimestamps            bool
	ConditionOnPreviousText   bool
	RepetitionPenalty         float64
	CompressionRatioThreshold float64
	LogProbThreshold          float64
	NoSpeechThreshold         float64
}

func DefaultOptions() Options {
	return Options{
		Language:                  "en",
		VADParameters:             DefaultVADParameters(),
		WordTimestamps:            true,
		ConditionOnPreviousText:   true,
		RepetitionPenalty:         1.0,
		CompressionRatioThreshold: 2.4,
		LogProbThreshold:          -1.0,
		NoSpeechThreshold:         0.6,
	}
}

// Request is a single model pass.
type Request struct {
	Audio                     []float32
	Language                  string
	Prompt                    string
	VADFilter                 bool
	VADParameters             VADParameters
	SuppressBlank             bool
	WordTimestamps            bool
	ConditionOnPreviousText   bool
	RepetitionPenalty         float64
	CompressionRatioThreshold float64
	LogProbThreshold          float64
	NoSpeechThreshold         float64
}

type RawWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

type RawSegment struct {
	Start float64   `json:"start"`
	End   float64   `json:"end"`
	Text  string    `json:"text"`
	Words []RawWord `json:"words"`
}

type Model interface {
	Transcribe(ctx context.Context, req Request) ([]RawSegment, error)
}

type Result struct {
	Segments     []transcript.Segment
	FallbackUsed bool
}

type Option func(*Service)

// WithFallbackObserver registers fn to be called each time the empty-result
// retry runs.
func WithFallbackObserver(fn func()) Option {
	return func(s *Service) {
		s.onFallback = fn
	}
}

type Service struct {
	timeout    time.Duration
	logger     *slog.Logger
	onFallback func()
}

func New(timeout time.Duration, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{timeout: timeout, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Transcribe runs one pass on model and, if it yields no segments, exactly
// one fallback pass with the VAD filter flipped, blank suppression off and
// word timestamps on. An empty result after the fallback is not an error.
func (s *Service) Transcribe(ctx context.Context, model Model, audio []float32, opts Options) (Result, error) {
	return s.transcribe(ctx, model, audio, opts, BuildPrompt(opts.Vocab))
}

func (s *Service) transcribe(ctx context.Context, model Model, audio []float32, opts Options, prompt string) (Result, error) {
	req := Request{
		Audio:                     audio,
		Language:                  opts.Language,
		Prompt:                    prompt,
		VADFilter:                 opts.VADFilter,
		VADParameters:             opts.VADParameters,
		SuppressBlank:             opts.SuppressBlank,
		WordTimestamps:            opts.WordTimestamps,
		ConditionOnPreviousText:   opts.ConditionOnPreviousText,
		RepetitionPenalty:         opts.RepetitionPenalty,
		CompressionRatioThreshold: opts.CompressionRatioThreshold,
		LogProbThreshold:          opts.LogProbThreshold,
		NoSpeechThreshold:         opts.NoSpeechThreshold,
	}

	raw, err := s.pass(ctx, model, req)
	if err != nil {
		return Result{}, err
	}

	fallback := false
	if len(raw) == 0 {
		s.logger.Warn("empty transcription result, retrying", "vad_filter", !req.VADFilter)
		if s.onFallback != nil {
			s.onFallback()
		}
		fallback = true
		req.VADFilter = !req.VADFilter
		req.SuppressBlank = false
		req.WordTimestamps = true
		raw, err = s.pass(ctx, model, req)
		if err != nil {
			return Result{}, fmt.Errorf("fallback pass: %w", err)
		}
	}

	segments, err := normalize(raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Segments: segments, FallbackUsed: fallback}, nil
}

func (s *Service) pass(ctx context.Context, model Model, req Request) ([]RawSegment, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	raw, err := model.Transcribe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return raw, nil
}

func normalize(raw []RawSegment) ([]transcript.Segment, error) {
	out := make([]transcript.Segment, 0, len(raw))
	for i, rs := range raw {
		var words []transcript.Word
		if len(rs.Words) > 0 {
			words = make([]transcript.Word, 0, len(rs.Words))
		}
		for j, rw := range rs.Words {
			w, err := transcript.NewWord(strings.TrimSpace(rw.Word), rw.Start, rw.End, roundScore(rw.Probability))
			if err != nil {
				return nil, fmt.Errorf("%w: segment %d word %d: %v", transcript.ErrMalformed, i, j, err)
			}
			words = append(words, w)
		}
		seg, err := transcript.NewSegment(rs.Start, rs.End, strings.TrimSpace(rs.Text), words)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %v", transcript.ErrMalformed, i, err)
		}
		out = append(out, seg)
	}
	return out, nil
}

func roundScore(p float64) float64 {
	return math.Round(p*100) / 100
}
