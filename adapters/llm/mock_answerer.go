package llm

import (
	"context"
	"strings"
	"unicode"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// MockAnswerer picks the context sentence sharing the most words with the question
type MockAnswerer struct{}

var _ repositories.QuestionAnswerer = MockAnswerer{}

// NewMockAnswerer creates a new mock answerer
func NewMockAnswerer() MockAnswerer {
	return MockAnswerer{}
}

// Answer implements repositories.QuestionAnswerer
func (MockAnswerer) Answer(ctx context.Context, question, passage string) (repositories.Answer, error) {
	if err := ctx.Err(); err != nil {
		return repositories.Answer{}, err
	}

	questionWords := words(question)
	best, bestScore := "", 0
	for _, sentence := range splitSentences(passage) {
		score := 0
		for w := range words(sentence) {
			if _, ok := questionWords[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sentence, score
		}
	}

	if bestScore == 0 {
		return repositories.Answer{}, nil
	}
	return repositories.Answer{Text: best, Answerable: true}, nil
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "of": {},
	"what": {}, "who": {}, "when": {}, "where": {}, "how": {}, "why": {},
	"to": {}, "in": {}, "on": {}, "and": {}, "does": {}, "did": {}, "do": {},
}

func words(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, stop := stopWords[f]; !stop {
			out[f] = struct{}{}
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
