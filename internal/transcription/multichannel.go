package transcription

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"scribeflow/internal/transcript"
)

// Combiner transcribes each channel of a multi-channel recording separately
// and attributes every segment to its channel index.
type Combiner struct {
	dispatcher *Service
}

func NewCombiner(dispatcher *Service) *Combiner {
	return &Combiner{dispatcher: dispatcher}
}

// Combine runs channels sequentially on model. Segment boundaries come from
// the first and last word, so word timestamps are always requested. A
// segment without words is reported as transcript.ErrMalformed.
func (c *Combiner) Combine(ctx context.Context, model Model, channels [][]float32, opts Options) (Result, error) {
	opts.ConditionOnPreviousText = false
	opts.WordTimestamps = true
	prompt := BuildPrompt(opts.Vocab)

	var merged Result
	for ch, audio := range channels {
		res, err := c.dispatcher.transcribe(ctx, model, audio, opts, prompt)
		if err != nil {
			return Result{}, fmt.Errorf("channel %d: %w", ch, err)
		}
		merged.FallbackUsed = merged.FallbackUsed || res.FallbackUsed

		for i, seg := range res.Segments {
			if len(seg.Words) == 0 {
				return Result{}, fmt.Errorf("%w: channel %d segment %d has no words", transcript.ErrMalformed, ch, i)
			}
			seg.Start = seg.Words[0].Start
			seg.End = seg.Words[len(seg.Words)-1].End
			if seg.Start > seg.End {
				return Result{}, fmt.Errorf("%w: channel %d segment %d words run backwards", transcript.ErrMalformed, ch, i)
			}
			merged.Segments = append(merged.Segments, seg.WithSpeaker(ch))
		}
	}

	slices.SortStableFunc(merged.Segments, func(a, b transcript.Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return merged, nil
}
