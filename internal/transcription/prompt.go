package transcription

import "strings"

const vocabPromptPrefix = "Vocab: "

// BuildPrompt turns a vocabulary list into the initial decoder prompt.
// Blank entries are dropped; an empty result yields "".
func BuildPrompt(vocab []string) string {
	terms := normalizedVocabularyTerms(vocab)
	if len(terms) == 0 {
		return ""
	}
	return vocabPromptPrefix + strings.Join(terms, ", ")
}

// SplitVocabulary parses a free-form vocabulary field separated by
// newlines, commas or semicolons, keeping the first spelling of each term.
func SplitVocabulary(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';'
	})
	return normalizedVocabularyTerms(fields)
}

func normalizedVocabularyTerms(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	terms := make([]string, 0, len(in))
	for _, field := range in {
		term := strings.TrimSpace(field)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}
