package diarization

import "scribeflow/internal/transcript"

// Reconcile resolves overlaps between adjacent speaker turns and then fuses
// touching turns of the same speaker. Input must be ordered by start.
func Reconcile(in []transcript.SpeakerSegment) []transcript.SpeakerSegment {
	return Merge(Contiguous(in))
}

// Contiguous splits every overlap between neighbours at its midpoint. The
// moved start is carried into the next comparison, so the output satisfies
// out[i].End <= out[i+1].Start. The input slice is left untouched.
func Contiguous(in []transcript.SpeakerSegment) []transcript.SpeakerSegment {
	if len(in) == 0 {
		return nil
	}
	out := make([]transcript.SpeakerSegment, 0, len(in))
	cur := in[0]
	for _, next := range in[1:] {
		if cur.End > next.Start {
			mid := (next.Start + cur.End) / 2
			out = append(out, transcript.SpeakerSegment{Start: cur.Start, End: mid, Speaker: cur.Speaker})
			next.Start = mid
		} else {
			out = append(out, cur)
		}
		cur = next
	}
	return append(out, cur)
}

// Merge fuses neighbours that share a boundary and a speaker. A fused turn
// keeps absorbing following turns until the speaker changes or a gap
// appears.
func Merge(in []transcript.SpeakerSegment) []transcript.SpeakerSegment {
	if len(in) == 0 {
		return nil
	}
	out := make([]transcript.SpeakerSegment, 0, len(in))
	cur := in[0]
	for _, next := range in[1:] {
		if cur.End == next.Start && cur.Speaker == next.Speaker {
			next.Start = cur.Start
		} else {
			out = append(out, cur)
		}
		cur = next
	}
	return append(out, cur)
}
