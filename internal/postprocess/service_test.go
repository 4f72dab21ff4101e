package postprocess

import (
	"context"
	"testing"

	"scribeflow/internal/transcript"
)

func TestFormatPunctuation(t *testing.T) {
	cases := map[string]string{
		"  hello world  ":          "Hello world.",
		"what is this ?":           "What is this?",
		"well... i think so":       "Well I think so.",
		"wait , really !":          "Wait, really!",
		"it  is\tfine;":            "It is fine;",
		"Already done.":            "Already done.",
		"items : one , two":        "Items: one, two.",
		"the iPhone is mine, i am": "The iPhone is mine, I am.",
		"":                         "",
	}
	for in, want := range cases {
		if got := FormatPunctuation(in); got != want {
			t.Fatalf("FormatPunctuation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsEmptyText(t *testing.T) {
	for _, in := range []string{"", " ", "...", " . . ", "\n"} {
		if !IsEmptyText(in) {
			t.Fatalf("expected %q to be empty", in)
		}
	}
	if IsEmptyText("ok.") {
		t.Fatal("expected text to be non-empty")
	}
}

func TestProcessDropsEmptyAndStripsWords(t *testing.T) {
	words := []transcript.Word{{Word: "hi", Start: 0, End: 1, Score: 0.9}}
	in := Input{Segments: []transcript.Segment{
		{Start: 0, End: 1, Text: "hi", Words: words},
		{Start: 1, End: 2, Text: " ... "},
		{Start: 2, End: 3, Text: "bye", Words: words},
	}}

	res, err := New().Process(context.Background(), in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Segments) != 2 || res.Dropped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Segments[0].Text != "Hi." || res.Segments[1].Text != "Bye." {
		t.Fatalf("unexpected texts: %+v", res.Segments)
	}
	for _, seg := range res.Segments {
		if seg.Words != nil {
			t.Fatalf("expected words to be stripped: %+v", seg)
		}
	}

	in.WordTimestamps = true
	res, err = New().Process(context.Background(), in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Segments[0].Words) != 1 {
		t.Fatalf("expected words to be kept: %+v", res.Segments[0])
	}
}

func TestConvertTimestamp(t *testing.T) {
	if got := ConvertTimestamp(1.23456, TimestampSeconds); got != 1.235 {
		t.Fatalf("unexpected seconds: %v", got)
	}
	if got := ConvertTimestamp(1.23456, TimestampMilliseconds); got != 1234.56 {
		t.Fatalf("unexpected milliseconds: %v", got)
	}
	if got := ConvertTimestamp(3725.9, TimestampHMS); got != "01:02:05.000" {
		t.Fatalf("unexpected hms: %v", got)
	}
}

func TestParseTimestampFormat(t *testing.T) {
	if f, err := ParseTimestampFormat(""); err != nil || f != TimestampSeconds {
		t.Fatalf("unexpected default: %q %v", f, err)
	}
	if f, err := ParseTimestampFormat("HMS"); err != nil || f != TimestampHMS {
		t.Fatalf("unexpected parse: %q %v", f, err)
	}
	if _, err := ParseTimestampFormat("minutes"); err == nil {
		t.Fatal("expected error")
	}
}
