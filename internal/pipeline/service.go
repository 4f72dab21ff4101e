// Package pipeline runs one transcription job end to end on a leased model
// replica: voice detection, optional diarization, transcription, speaker
// alignment and post-processing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scribeflow/internal/audio"
	"scribeflow/internal/diarization"
	"scribeflow/internal/pool"
	"scribeflow/internal/postprocess"
	"scribeflow/internal/transcript"
	"scribeflow/internal/transcription"
)

// EmptyAudioText is the placeholder utterance returned when no speech is
// detected.
const EmptyAudioText = "<EMPTY AUDIO>"

var ErrNoAudio = errors.New("pipeline: job has no audio")

type Leaser interface {
	Acquire(ctx context.Context) (*pool.Slot, error)
}

type Diarizer interface {
	Run(ctx context.Context, model diarization.Model, in diarization.Input) (diarization.Output, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, model transcription.Model, audio []float32, opts transcription.Options) (transcription.Result, error)
}

type ChannelCombiner interface {
	Combine(ctx context.Context, model transcription.Model, channels [][]float32, opts transcription.Options) (transcription.Result, error)
}

type PostProcessor interface {
	Process(ctx context.Context, in postprocess.Input) (postprocess.Result, error)
}

type Observer interface {
	ObserveJob(outcome string, duration time.Duration)
	ObserveStage(stage string, duration time.Duration)
}

type Dependencies struct {
	Pool          Leaser
	Diarizer      Diarizer
	Transcriber   Transcriber
	Combiner      ChannelCombiner
	PostProcessor PostProcessor
	Observer      Observer
}

// Job is the immutable input of one request. Channels holds one waveform
// per channel at audio.SampleRate; unless MultiChannel is set they are
// mixed down before processing.
type Job struct {
	ID             string
	Channels       [][]float32
	Duration       float64
	MultiChannel   bool
	Diarization    bool
	NumSpeakers    int
	WordTimestamps bool
	Options        transcription.Options
}

// Timings mirror the process times reported to clients. Diarization is nil
// when diarization did not run.
type Timings struct {
	Total          time.Duration
	Transcription  time.Duration
	Diarization    *time.Duration
	PostProcessing time.Duration
}

type Result struct {
	JobID        string
	Segments     []transcript.Segment
	Duration     float64
	Timings      Timings
	Device       int
	NumSpeakers  int
	EarlyReturn  bool
	FallbackUsed bool
}

type Option func(*Service)

// WithAcquireTimeout bounds how long a job waits for a free replica. Zero
// waits until ctx is done.
func WithAcquireTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.acquireTimeout = d
	}
}

type Service struct {
	pool          Leaser
	diarizer      Diarizer
	transcriber   Transcriber
	combiner      ChannelCombiner
	postProcessor PostProcessor
	observer      Observer
	logger        *slog.Logger

	acquireTimeout time.Duration
}

func New(deps Dependencies, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Pool == nil || deps.Diarizer == nil || deps.Transcriber == nil || deps.Combiner == nil || deps.PostProcessor == nil {
		panic("pipeline: all dependencies are required")
	}
	s := &Service{
		pool:          deps.Pool,
		diarizer:      deps.Diarizer,
		transcriber:   deps.Transcriber,
		combiner:      deps.Combiner,
		postProcessor: deps.PostProcessor,
		observer:      deps.Observer,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs job to completion. Failures are returned as *JobError; the
// replica lease is released on every path, including panics raised by a
// model collaborator.
func (s *Service) Process(ctx context.Context, job Job) (res Result, err error) {
	started := time.Now()
	logger := s.logger.With("job_id", job.ID)
	state := Queued

	defer func() {
		switch {
		case err != nil:
			s.observeJob("failed", time.Since(started))
			logger.Error("job failed", "state", state.String(), "error", err)
		case res.EarlyReturn:
			s.observeJob("empty", time.Since(started))
		default:
			s.observeJob("completed", time.Since(started))
		}
	}()

	if len(job.Channels) == 0 {
		return Result{}, &JobError{JobID: job.ID, State: state, Err: ErrNoAudio}
	}

	slot, err := s.acquire(ctx)
	if err != nil {
		return Result{}, &JobError{JobID: job.ID, State: state, Err: err}
	}
	defer func() {
		if relErr := slot.Release(); relErr != nil {
			logger.Warn("slot release failed", "device", slot.Device(), "error", relErr)
		}
		logger.Debug("slot released", "device", slot.Device())
	}()
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{}
			err = &JobError{JobID: job.ID, State: state, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	state = SlotAcquired
	logger = logger.With("device", slot.Device())
	logger.Debug("slot acquired")

	res, err = s.run(ctx, slot, job, logger, &state)
	if err != nil {
		return Result{}, &JobError{JobID: job.ID, State: state, Err: err}
	}
	res.Timings.Total = time.Since(started)
	if res.EarlyReturn {
		res.Timings = Timings{}
	}
	state = Completed
	return res, nil
}

func (s *Service) acquire(ctx context.Context) (*pool.Slot, error) {
	if s.acquireTimeout <= 0 {
		return s.pool.Acquire(ctx)
	}
	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.pool.Acquire(acquireCtx)
}

// run advances the job through its states on the leased replica, keeping
// *state current so a failure can report where it happened.
func (s *Service) run(ctx context.Context, slot *pool.Slot, job Job, logger *slog.Logger, state *State) (Result, error) {
	replica := slot.Replica()
	res := Result{JobID: job.ID, Duration: job.Duration, Device: slot.Device()}

	if replica.VAD == nil || replica.Transcriber == nil {
		return Result{}, fmt.Errorf("device %d: replica is missing a model", slot.Device())
	}

	channels := job.Channels
	if !job.MultiChannel && len(channels) > 1 {
		channels = [][]float32{audio.Audio{Channels: channels}.Mono()}
	}

	speech, hasSpeech, err := s.detectSpeech(ctx, replica.VAD, channels)
	if err != nil {
		return Result{}, err
	}
	if !hasSpeech {
		logger.Info("no speech detected, returning placeholder", "duration_s", job.Duration)
		res.EarlyReturn = true
		res.Segments = []transcript.Segment{{Start: 0, End: job.Duration, Text: EmptyAudioText}}
		return res, nil
	}

	var turns []transcript.SpeakerSegment
	diarize := job.Diarization && !job.MultiChannel
	if diarize {
		*state = DiarizationRunning
		if replica.Diarizer == nil {
			return Result{}, fmt.Errorf("device %d: replica has no diarization model", slot.Device())
		}
		stageStarted := time.Now()
		out, err := s.diarizer.Run(ctx, replica.Diarizer, diarization.Input{
			Audio:             channels[0],
			Duration:          job.Duration,
			Speech:            speech,
			OracleNumSpeakers: job.NumSpeakers,
		})
		if err != nil {
			return Result{}, err
		}
		elapsed := time.Since(stageStarted)
		res.Timings.Diarization = &elapsed
		s.observeStage("diarization", elapsed)
		turns = out.Segments
		res.NumSpeakers = out.NumSpeakers
	}

	*state = TranscriptionRunning
	stageStarted := time.Now()
	var tr transcription.Result
	if job.MultiChannel {
		tr, err = s.combiner.Combine(ctx, replica.Transcriber, channels, job.Options)
		res.NumSpeakers = len(channels)
	} else {
		tr, err = s.transcriber.Transcribe(ctx, replica.Transcriber, channels[0], job.Options)
	}
	if err != nil {
		return Result{}, err
	}
	res.Timings.Transcription = time.Since(stageStarted)
	s.observeStage("transcription", res.Timings.Transcription)
	res.FallbackUsed = tr.FallbackUsed

	*state = Reconciling
	stageStarted = time.Now()
	segments := tr.Segments
	if diarize {
		segments = AssignSpeakers(segments, turns)
	}
	post, err := s.postProcessor.Process(ctx, postprocess.Input{Segments: segments, WordTimestamps: job.WordTimestamps})
	if err != nil {
		return Result{}, err
	}
	res.Timings.PostProcessing = time.Since(stageStarted)
	s.observeStage("post_processing", res.Timings.PostProcessing)
	res.Segments = post.Segments

	return res, nil
}

// detectSpeech runs voice detection on every channel. The returned speech
// intervals belong to the first channel; hasSpeech is true when any
// channel contains speech.
func (s *Service) detectSpeech(ctx context.Context, vad pool.VoiceDetector, channels [][]float32) ([]transcript.Interval, bool, error) {
	var first []transcript.Interval
	hasSpeech := false
	for i, ch := range channels {
		intervals, err := vad.DetectSpeech(ctx, ch)
		if err != nil {
			return nil, false, fmt.Errorf("voice detection on channel %d: %w", i, err)
		}
		if i == 0 {
			first = intervals
		}
		if len(intervals) > 0 {
			hasSpeech = true
		}
	}
	return first, hasSpeech, nil
}

func (s *Service) observeJob(outcome string, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveJob(outcome, d)
	}
}

func (s *Service) observeStage(stage string, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveStage(stage, d)
	}
}
