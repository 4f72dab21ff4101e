package diarization

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribeflow/internal/transcript"
)

func seg(start, end float64, speaker int) transcript.SpeakerSegment {
	return transcript.SpeakerSegment{Start: start, End: end, Speaker: speaker}
}

func TestContiguousSplitsOverlapAtMidpoint(t *testing.T) {
	in := []transcript.SpeakerSegment{seg(0, 5, 0), seg(4, 9, 1), seg(9, 9.5, 0)}
	want := []transcript.SpeakerSegment{seg(0, 4.5, 0), seg(4.5, 9, 1), seg(9, 9.5, 0)}

	phaseA := Contiguous(in)
	assert.Equal(t, want, phaseA)
	assert.Equal(t, want, Merge(phaseA))
	assert.Equal(t, want, Reconcile(in))
}

func TestMergeFusesTouchingSameSpeaker(t *testing.T) {
	in := []transcript.SpeakerSegment{seg(0, 3, 0), seg(3, 6, 0)}

	phaseA := Contiguous(in)
	assert.Equal(t, in, phaseA)
	assert.Equal(t, []transcript.SpeakerSegment{seg(0, 6, 0)}, Merge(phaseA))
}

func TestMergeChainsAcrossSeveralTurns(t *testing.T) {
	in := []transcript.SpeakerSegment{seg(0, 1, 2), seg(1, 2, 2), seg(2, 3, 2), seg(3, 4, 1), seg(5, 6, 1)}
	got := Merge(in)
	assert.Equal(t, []transcript.SpeakerSegment{seg(0, 3, 2), seg(3, 4, 1), seg(5, 6, 1)}, got)
}

func TestContiguousCarriesMovedStart(t *testing.T) {
	// the second turn's start moves to 2, which then overlaps the third turn
	in := []transcript.SpeakerSegment{seg(0, 4, 0), seg(0, 3, 1), seg(2.5, 5, 0)}
	got := Contiguous(in)
	assert.Equal(t, []transcript.SpeakerSegment{seg(0, 2, 0), seg(2, 2.75, 1), seg(2.75, 5, 0)}, got)
}

func TestReconcileEdgeCases(t *testing.T) {
	assert.Empty(t, Reconcile(nil))
	assert.Empty(t, Reconcile([]transcript.SpeakerSegment{}))

	single := []transcript.SpeakerSegment{seg(1, 2, 3)}
	assert.Equal(t, single, Reconcile(single))
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	in := []transcript.SpeakerSegment{seg(0, 5, 0), seg(4, 9, 0), seg(8, 10, 1)}
	snapshot := append([]transcript.SpeakerSegment(nil), in...)
	_ = Reconcile(in)
	assert.Equal(t, snapshot, in)
}

func randomTurns(r *rand.Rand) []transcript.SpeakerSegment {
	n := r.Intn(12)
	out := make([]transcript.SpeakerSegment, 0, n)
	start := 0.0
	for i := 0; i < n; i++ {
		start += float64(r.Intn(8)) * 0.25
		length := float64(1+r.Intn(12)) * 0.25
		out = append(out, seg(start, start+length, r.Intn(3)))
	}
	return out
}

func TestReconcileProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		in := randomTurns(r)

		phaseA := Contiguous(in)
		require.Len(t, phaseA, len(in))
		for i := 0; i+1 < len(phaseA); i++ {
			require.LessOrEqual(t, phaseA[i].End, phaseA[i+1].Start, "overlap left at %d in %v", i, phaseA)
		}

		phaseB := Merge(phaseA)
		for i := 0; i+1 < len(phaseB); i++ {
			shared := phaseB[i].End == phaseB[i+1].Start && phaseB[i].Speaker == phaseB[i+1].Speaker
			require.False(t, shared, "unmerged neighbours at %d in %v", i, phaseB)
		}

		once := Reconcile(in)
		require.Equal(t, once, Reconcile(once), "not a fixpoint for input %v", in)
	}
}
