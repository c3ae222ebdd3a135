package assistant

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// minPrefixRunes is the shortest word that may match a category word by
// prefix, so "makan" finds "Makanan" but "a" finds nothing.
const minPrefixRunes = 3

// MatchCategory maps free text onto one of candidates. It tries an exact
// match ignoring case and spacing, then scores every candidate by how many
// of its words the text names, either whole or by a prefix of at least
// minPrefixRunes runes. The highest score wins; ties go to the longer
// candidate. Anything else yields fallback.
func MatchCategory(freeText string, candidates []string, fallback string) string {
	needle := normalize(freeText)
	if needle == "" {
		return fallback
	}

	for _, c := range candidates {
		if normalize(c) == needle {
			return c
		}
	}

	words := tokens(freeText)
	best, bestScore := "", 0
	for _, c := range candidates {
		score := 0
		for _, cw := range tokens(c) {
			if namesWord(words, cw) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && len(c) > len(best)) {
			best, bestScore = c, score
		}
	}
	if best != "" {
		return best
	}
	return fallback
}

// namesWord reports whether one of words is categoryWord or a long enough
// prefix of it.
func namesWord(words []string, categoryWord string) bool {
	for _, w := range words {
		if w == categoryWord {
			return true
		}
		if utf8.RuneCountInString(w) >= minPrefixRunes && strings.HasPrefix(categoryWord, w) {
			return true
		}
	}
	return false
}

// tokens splits s into lower-case words on anything that is not a letter
// or digit.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CategoryMatcher picks the best category for free text.
type CategoryMatcher interface {
	Match(ctx context.Context, freeText string, candidates []string, fallback string) string
}

// LexicalMatcher uses MatchCategory only.
type LexicalMatcher struct{}

func (LexicalMatcher) Match(ctx context.Context, freeText string, candidates []string, fallback string) string {
	return MatchCategory(freeText, candidates, fallback)
}

// ModelMatcher asks the model when lexical matching finds nothing. The
// answer must name one of candidates, otherwise fallback is used.
type ModelMatcher struct {
	gen Generator
	log zerolog.Logger
}

func NewModelMatcher(gen Generator, log zerolog.Logger) *ModelMatcher {
	return &ModelMatcher{gen: gen, log: log}
}

func (m *ModelMatcher) Match(ctx context.Context, freeText string, candidates []string, fallback string) string {
	if got := MatchCategory(freeText, candidates, fallback); got != fallback || strings.TrimSpace(freeText) == "" {
		return got
	}

	answer, err := m.gen.GenerateText(ctx, categoryMatchSystem, categoryMatchPrompt(freeText, candidates, fallback))
	if err != nil {
		m.log.Warn().Err(err).Str("text", freeText).Msg("model category match failed; using fallback")
		return fallback
	}
	answer = strings.Trim(strings.TrimSpace(answer), "\"'`.")
	for _, c := range candidates {
		if normalize(c) == normalize(answer) {
			return c
		}
	}
	return fallback
}
