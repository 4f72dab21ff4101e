package transcription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribeflow/internal/transcript"
)

// channelModel answers by the first sample of the audio, which tests use
// as a channel tag.
type channelModel struct {
	byChannel map[float32][]RawSegment
	calls     []Request
}

func (m *channelModel) Transcribe(_ context.Context, req Request) ([]RawSegment, error) {
	m.calls = append(m.calls, req)
	return m.byChannel[req.Audio[0]], nil
}

func TestCombineAttributesChannelsAndOrdersByWordStart(t *testing.T) {
	m := &channelModel{byChannel: map[float32][]RawSegment{
		0: {
			{Start: 0, End: 10, Text: "hi there", Words: []RawWord{
				{Word: "hi", Start: 0.5, End: 0.8, Probability: 0.9},
				{Word: "there", Start: 0.9, End: 1.4, Probability: 0.9},
			}},
			{Start: 10, End: 20, Text: "bye", Words: []RawWord{{Word: "bye", Start: 5, End: 5.5, Probability: 0.9}}},
		},
		1: {
			{Start: 0, End: 10, Text: "hello", Words: []RawWord{{Word: "hello", Start: 2, End: 2.6, Probability: 0.8}}},
		},
	}}
	opts := DefaultOptions()
	opts.ConditionOnPreviousText = true
	opts.WordTimestamps = false
	opts.Vocab = []string{"Acme"}

	res, err := NewCombiner(New(0, quietLogger())).Combine(context.Background(), m, [][]float32{{0}, {1}}, opts)
	require.NoError(t, err)

	require.Len(t, m.calls, 2)
	for _, call := range m.calls {
		assert.False(t, call.ConditionOnPreviousText)
		assert.True(t, call.WordTimestamps)
		assert.Equal(t, "Vocab: Acme", call.Prompt)
	}

	require.Len(t, res.Segments, 3)
	assert.Equal(t, "hi there", res.Segments[0].Text)
	assert.InDelta(t, 0.5, res.Segments[0].Start, 1e-9)
	assert.InDelta(t, 1.4, res.Segments[0].End, 1e-9)
	assert.Equal(t, 0, *res.Segments[0].Speaker)

	assert.Equal(t, "hello", res.Segments[1].Text)
	assert.Equal(t, 1, *res.Segments[1].Speaker)

	assert.Equal(t, "bye", res.Segments[2].Text)
	assert.InDelta(t, 5.0, res.Segments[2].Start, 1e-9)
	assert.Equal(t, 0, *res.Segments[2].Speaker)
}

func TestCombineFailsOnSegmentWithoutWords(t *testing.T) {
	m := &channelModel{byChannel: map[float32][]RawSegment{
		0: {{Start: 0, End: 1, Text: "ghost"}},
	}}
	_, err := NewCombiner(New(0, quietLogger())).Combine(context.Background(), m, [][]float32{{0}}, DefaultOptions())
	require.ErrorIs(t, err, transcript.ErrMalformed)
}

func TestCombineSilentChannelsGiveEmptyResult(t *testing.T) {
	m := &channelModel{byChannel: map[float32][]RawSegment{}}
	res, err := NewCombiner(New(0, quietLogger())).Combine(context.Background(), m, [][]float32{{0}, {1}}, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.True(t, res.FallbackUsed)
	assert.Len(t, m.calls, 4)
}
