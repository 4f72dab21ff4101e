// Package diarization picks multiscale parameters for a recording, runs the
// diarization model and reconciles its raw speaker turns.
package diarization

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"scribeflow/internal/transcript"
)

// Request is what a diarization model receives for one recording.
type Request struct {
	Audio             []float32
	Config            ScaleConfig
	Speech            []transcript.Interval
	OracleNumSpeakers int
	MaxNumSpeakers    int
}

// Result is the raw, possibly overlapping, model output.
type Result struct {
	Segments    []transcript.SpeakerSegment
	NumSpeakers int
}

type Model interface {
	Diarize(ctx context.Context, req Request) (Result, error)
}

type Input struct {
	Audio    []float32
	Duration float64
	Speech   []transcript.Interval
	// OracleNumSpeakers is forwarded unchanged; 0 lets the model estimate.
	OracleNumSpeakers int
}

type Output struct {
	Segments    []transcript.SpeakerSegment
	NumSpeakers int
	Config      ScaleConfig
}

type Service struct {
	selector    *Selector
	maxSpeakers int
	timeout     time.Duration
	logger      *slog.Logger
}

func New(selector *Selector, maxSpeakers int, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		selector:    selector,
		maxSpeakers: maxSpeakers,
		timeout:     timeout,
		logger:      logger,
	}
}

// Run diarizes one recording on model. The caller must hold the lease of
// the replica that owns model.
func (s *Service) Run(ctx context.Context, model Model, in Input) (Output, error) {
	cfg := s.selector.Select(in.Duration)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := model.Diarize(ctx, Request{
		Audio:             in.Audio,
		Config:            cfg,
		Speech:            in.Speech,
		OracleNumSpeakers: in.OracleNumSpeakers,
		MaxNumSpeakers:    s.maxSpeakers,
	})
	if err != nil {
		return Output{}, fmt.Errorf("diarize: %w", err)
	}

	raw := make([]transcript.SpeakerSegment, 0, len(res.Segments))
	for i, seg := range res.Segments {
		checked, err := transcript.NewSpeakerSegment(seg.Start, seg.End, seg.Speaker)
		if err != nil {
			return Output{}, fmt.Errorf("%w: speaker segment %d: %v", transcript.ErrMalformed, i, err)
		}
		raw = append(raw, checked)
	}
	slices.SortStableFunc(raw, func(a, b transcript.SpeakerSegment) int {
		return cmp.Compare(a.Start, b.Start)
	})

	segments := Reconcile(raw)
	s.logger.Debug("diarization reconciled",
		"duration_s", in.Duration,
		"batch_size", cfg.BatchSize,
		"scales", len(cfg.Scales),
		"raw_segments", len(raw),
		"segments", len(segments),
		"speakers", res.NumSpeakers,
	)

	return Output{Segments: segments, NumSpeakers: res.NumSpeakers, Config: cfg}, nil
}
