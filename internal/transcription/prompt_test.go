package transcription

import "testing"

func TestBuildPrompt(t *testing.T) {
	cases := []struct {
		name  string
		vocab []string
		want  string
	}{
		{name: "nil", vocab: nil, want: ""},
		{name: "blank only", vocab: []string{"", "  "}, want: ""},
		{name: "joined", vocab: []string{"Alice", " Bob "}, want: "Vocab: Alice, Bob"},
		{name: "dedupes case-insensitively", vocab: []string{"GPU", "gpu", "CUDA"}, want: "Vocab: GPU, CUDA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildPrompt(tc.vocab); got != tc.want {
				t.Fatalf("unexpected prompt: %q", got)
			}
		})
	}
}

func TestSplitVocabulary(t *testing.T) {
	got := SplitVocabulary("Alice,\nBob; alice ,, Carol")
	want := []string{"Alice", "Bob", "Carol"}
	if len(got) != len(want) {
		t.Fatalf("unexpected terms: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected terms: %v", got)
		}
	}
}
