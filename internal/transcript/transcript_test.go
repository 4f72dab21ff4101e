package transcript

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpeakerSegmentValidates(t *testing.T) {
	seg, err := NewSpeakerSegment(1, 2.5, 3)
	require.NoError(t, err)
	assert.Equal(t, SpeakerSegment{Start: 1, End: 2.5, Speaker: 3}, seg)
	assert.InDelta(t, 1.5, seg.Duration(), 1e-9)

	_, err = NewSpeakerSegment(2, 2, 0)
	require.NoError(t, err, "point segments are tolerated")

	_, err = NewSpeakerSegment(3, 2, 0)
	require.Error(t, err)
	_, err = NewSpeakerSegment(0, 1, -1)
	require.Error(t, err)
	_, err = NewSpeakerSegment(math.NaN(), 1, 0)
	require.Error(t, err)
}

func TestNewWordRejectsScoreOutOfRange(t *testing.T) {
	_, err := NewWord("hi", 0, 0.3, 0.9)
	require.NoError(t, err)

	_, err = NewWord("hi", 0, 0.3, 1.2)
	require.Error(t, err)
	_, err = NewWord("hi", 0, 0.3, -0.1)
	require.Error(t, err)
}

func TestSegmentWithSpeakerCopies(t *testing.T) {
	seg, err := NewSegment(0, 1, "hello", nil)
	require.NoError(t, err)
	require.Nil(t, seg.Speaker)

	a := seg.WithSpeaker(1)
	b := seg.WithSpeaker(2)
	require.NotNil(t, a.Speaker)
	require.NotNil(t, b.Speaker)
	assert.Equal(t, 1, *a.Speaker)
	assert.Equal(t, 2, *b.Speaker)
	assert.Nil(t, seg.Speaker)
}

func TestOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, Overlap(0, 2, 1, 3), 1e-9)
	assert.InDelta(t, -1.0, Overlap(0, 1, 2, 3), 1e-9)
	assert.InDelta(t, 0.0, Overlap(0, 1, 1, 3), 1e-9)
}
