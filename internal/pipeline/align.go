package pipeline

import "scribeflow/internal/transcript"

// AssignSpeakers gives each segment the speaker of the turn that overlaps
// it the most, preferring the turn that starts first on ties. A segment
// that overlaps no turn takes the nearest one. With no turns, segments are
// returned without speakers.
func AssignSpeakers(segments []transcript.Segment, turns []transcript.SpeakerSegment) []transcript.Segment {
	out := make([]transcript.Segment, len(segments))
	for i, seg := range segments {
		seg.Speaker = nil
		best := -1
		bestOverlap := 0.0
		for j, turn := range turns {
			// negative overlap is the gap to the turn
			ov := transcript.Overlap(seg.Start, seg.End, turn.Start, turn.End)
			if best < 0 || ov > bestOverlap || (ov == bestOverlap && turn.Start < turns[best].Start) {
				best, bestOverlap = j, ov
			}
		}
		if best >= 0 {
			seg = seg.WithSpeaker(turns[best].Speaker)
		}
		out[i] = seg
	}
	return out
}
