package transcription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribeflow/internal/transcript"
)

type scriptedModel struct {
	replies [][]RawSegment
	errs    []error
	calls   []Request
}

func (m *scriptedModel) Transcribe(_ context.Context, req Request) ([]RawSegment, error) {
	i := len(m.calls)
	m.calls = append(m.calls, req)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], err
	}
	return nil, err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoSegments() []RawSegment {
	return []RawSegment{
		{Start: 0, End: 1, Text: " hello ", Words: []RawWord{{Word: " hello", Start: 0.1, End: 0.9, Probability: 0.987}}},
		{Start: 1, End: 2, Text: "world", Words: []RawWord{{Word: "world", Start: 1.1, End: 1.8, Probability: 0.5}}},
	}
}

func TestTranscribeFallsBackOnceWhenFirstPassIsEmpty(t *testing.T) {
	m := &scriptedModel{replies: [][]RawSegment{nil, twoSegments()}}
	fallbacks := 0
	svc := New(0, quietLogger(), WithFallbackObserver(func() { fallbacks++ }))

	opts := DefaultOptions()
	opts.VADFilter = false
	opts.SuppressBlank = true
	opts.WordTimestamps = false
	res, err := svc.Transcribe(context.Background(), m, []float32{0.1}, opts)
	require.NoError(t, err)

	require.Len(t, m.calls, 2)
	assert.False(t, m.calls[0].VADFilter)
	assert.True(t, m.calls[0].SuppressBlank)
	assert.True(t, m.calls[1].VADFilter, "fallback must flip the VAD filter")
	assert.False(t, m.calls[1].SuppressBlank)
	assert.True(t, m.calls[1].WordTimestamps)
	assert.Equal(t, m.calls[0].CompressionRatioThreshold, m.calls[1].CompressionRatioThreshold)
	assert.Equal(t, m.calls[0].NoSpeechThreshold, m.calls[1].NoSpeechThreshold)

	assert.True(t, res.FallbackUsed)
	assert.Equal(t, 1, fallbacks)
	require.Len(t, res.Segments, 2)
	assert.Equal(t, "hello", res.Segments[0].Text)
	assert.Equal(t, "hello", res.Segments[0].Words[0].Word)
	assert.InDelta(t, 0.99, res.Segments[0].Words[0].Score, 1e-9)
}

func TestTranscribeFallbackTurnsVADOffWhenCallerHadItOn(t *testing.T) {
	m := &scriptedModel{replies: [][]RawSegment{nil, nil}}
	opts := DefaultOptions()
	opts.VADFilter = true

	res, err := New(0, quietLogger()).Transcribe(context.Background(), m, nil, opts)
	require.NoError(t, err)
	require.Len(t, m.calls, 2, "no third attempt")
	assert.False(t, m.calls[1].VADFilter)
	assert.True(t, res.FallbackUsed)
	assert.Empty(t, res.Segments)
}

func TestTranscribeNoFallbackWhenFirstPassHasSegments(t *testing.T) {
	m := &scriptedModel{replies: [][]RawSegment{twoSegments()}}
	res, err := New(0, quietLogger()).Transcribe(context.Background(), m, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, m.calls, 1)
	assert.False(t, res.FallbackUsed)
	assert.Len(t, res.Segments, 2)
}

func TestTranscribePassesPromptAndThresholds(t *testing.T) {
	m := &scriptedModel{replies: [][]RawSegment{twoSegments()}}
	opts := DefaultOptions()
	opts.Language = "fr"
	opts.Vocab = []string{"Wordcab", " ", "GPU"}
	opts.RepetitionPenalty = 1.2

	_, err := New(0, quietLogger()).Transcribe(context.Background(), m, nil, opts)
	require.NoError(t, err)
	got := m.calls[0]
	assert.Equal(t, "Vocab: Wordcab, GPU", got.Prompt)
	assert.Equal(t, "fr", got.Language)
	assert.InDelta(t, 1.2, got.RepetitionPenalty, 1e-9)
	assert.InDelta(t, 2.4, got.CompressionRatioThreshold, 1e-9)
	assert.InDelta(t, -1.0, got.LogProbThreshold, 1e-9)
	assert.Equal(t, DefaultVADParameters(), got.VADParameters)
}

func TestTranscribeReturnsModelErrors(t *testing.T) {
	boom := errors.New("device lost")

	_, err := New(0, quietLogger()).Transcribe(context.Background(), &scriptedModel{errs: []error{boom}}, nil, DefaultOptions())
	require.ErrorIs(t, err, boom)

	m := &scriptedModel{errs: []error{nil, boom}}
	_, err = New(0, quietLogger()).Transcribe(context.Background(), m, nil, DefaultOptions())
	require.ErrorIs(t, err, boom)
	assert.Len(t, m.calls, 2)
}

func TestTranscribeRejectsInvalidWordScore(t *testing.T) {
	m := &scriptedModel{replies: [][]RawSegment{{
		{Start: 0, End: 1, Text: "x", Words: []RawWord{{Word: "x", Start: 0, End: 1, Probability: 3}}},
	}}}
	_, err := New(0, quietLogger()).Transcribe(context.Background(), m, nil, DefaultOptions())
	require.ErrorIs(t, err, transcript.ErrMalformed)
}
