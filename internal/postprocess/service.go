// Package postprocess cleans up transcript segments before they are
// returned: empty utterances are dropped, punctuation is normalized and
// word lists are stripped when the caller did not ask for them.
package postprocess

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"scribeflow/internal/transcript"
)

type Input struct {
	Segments       []transcript.Segment
	WordTimestamps bool
}

type Result struct {
	Segments []transcript.Segment
	Dropped  int
}

type Service struct{}

func New() *Service {
	return &Service{}
}

// Process never fails today; the error return matches the other stages.
func (s *Service) Process(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	out := make([]transcript.Segment, 0, len(in.Segments))
	for _, seg := range in.Segments {
		if IsEmptyText(seg.Text) {
			continue
		}
		seg.Text = FormatPunctuation(seg.Text)
		if !in.WordTimestamps {
			seg.Words = nil
		}
		out = append(out, seg)
	}
	return Result{Segments: out, Dropped: len(in.Segments) - len(out)}, nil
}

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	standaloneLower = regexp.MustCompile(`\bi\b`)
	spaceBeforeMark = strings.NewReplacer(" ?", "?", " !", "!", " .", ".", " ,", ",", " :", ":", " ;", ";")
)

// IsEmptyText reports whether text has nothing left once periods and
// whitespace are removed.
func IsEmptyText(text string) bool {
	text = strings.ReplaceAll(text, ".", "")
	return whitespaceRun.ReplaceAllString(text, "") == ""
}

func FormatPunctuation(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(text)
	if unicode.IsLower(first) {
		text = string(unicode.ToUpper(first)) + text[size:]
	}
	if !strings.ContainsRune(".?!:;,", lastRune(text)) {
		text += "."
	}

	text = strings.ReplaceAll(text, "...", "")
	text = spaceBeforeMark.Replace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = standaloneLower.ReplaceAllString(text, "I")
	return strings.TrimSpace(text)
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

type TimestampFormat string

const (
	TimestampSeconds      TimestampFormat = "s"
	TimestampMilliseconds TimestampFormat = "ms"
	TimestampHMS          TimestampFormat = "hms"
)

func ParseTimestampFormat(value string) (TimestampFormat, error) {
	switch f := TimestampFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return TimestampSeconds, nil
	case TimestampSeconds, TimestampMilliseconds, TimestampHMS:
		return f, nil
	default:
		return "", fmt.Errorf("invalid timestamp format %q: valid values are s, ms, hms", value)
	}
}

// ConvertTimestamp renders seconds in format. s and ms yield float64
// rounded to three decimals; hms yields "HH:MM:SS.000".
func ConvertTimestamp(seconds float64, format TimestampFormat) any {
	switch format {
	case TimestampMilliseconds:
		return round3(seconds * 1000)
	case TimestampHMS:
		total := int(math.Floor(seconds))
		return fmt.Sprintf("%02d:%02d:%02d.000", total/3600, (total%3600)/60, total%60)
	default:
		return round3(seconds)
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
