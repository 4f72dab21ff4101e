// Package transcript holds the time-aligned values exchanged between the
// diarization, transcription and orchestration stages.
package transcript

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed marks model output that violates the shape callers rely on,
// such as a segment without words or an inverted span.
var ErrMalformed = errors.New("malformed model output")

// SpeakerSegment is one diarized speaker turn in seconds.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker int     `json:"speaker"`
}

// NewSpeakerSegment validates start <= end and a non-negative speaker id.
// Point segments (start == end) are accepted.
func NewSpeakerSegment(start, end float64, speaker int) (SpeakerSegment, error) {
	if err := checkSpan(start, end); err != nil {
		return SpeakerSegment{}, err
	}
	if speaker < 0 {
		return SpeakerSegment{}, fmt.Errorf("speaker id must be >= 0, got %d", speaker)
	}
	return SpeakerSegment{Start: start, End: end, Speaker: speaker}, nil
}

func (s SpeakerSegment) Duration() float64 {
	return s.End - s.Start
}

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

// NewWord validates the span and that score lies in [0,1].
func NewWord(word string, start, end, score float64) (Word, error) {
	if err := checkSpan(start, end); err != nil {
		return Word{}, err
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Word{}, fmt.Errorf("word score must be within [0,1], got %v", score)
	}
	return Word{Word: word, Start: start, End: end, Score: score}, nil
}

// Segment is a transcribed utterance. Speaker is nil when no speaker could
// be attributed.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Words   []Word  `json:"words,omitempty"`
	Speaker *int    `json:"speaker"`
}

func NewSegment(start, end float64, text string, words []Word) (Segment, error) {
	if err := checkSpan(start, end); err != nil {
		return Segment{}, err
	}
	return Segment{Start: start, End: end, Text: text, Words: words}, nil
}

// WithSpeaker returns a copy of s attributed to speaker.
func (s Segment) WithSpeaker(speaker int) Segment {
	id := speaker
	s.Speaker = &id
	return s
}

// Interval is a span of detected speech.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func NewInterval(start, end float64) (Interval, error) {
	if err := checkSpan(start, end); err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

// Overlap returns the length of the intersection of [aStart,aEnd] and
// [bStart,bEnd], or a negative gap when they are disjoint.
func Overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return math.Min(aEnd, bEnd) - math.Max(aStart, bStart)
}

func checkSpan(start, end float64) error {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return fmt.Errorf("timestamps must be finite, got [%v, %v]", start, end)
	}
	if start < 0 {
		return fmt.Errorf("start must be >= 0, got %v", start)
	}
	if start > end {
		return fmt.Errorf("start %v is after end %v", start, end)
	}
	return nil
}
