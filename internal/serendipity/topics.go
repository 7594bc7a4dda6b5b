package serendipity

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"patina/internal/domain"
)

const (
	titleWordWeight   = 3
	summaryWordWeight = 1
	minTopicWordLen   = 3
	minTopicScore     = 0.05
	maxTopics         = 10
)

//nolint:gochecknoglobals // Read-only lookup table.
var stopWords = wordSet(`
	the a an and or but in on at to for of with by
	from as is was are were been be have has had do does
	did will would could should may might must shall can need
	dare ought used it its this that these those i you he
	she we they what which who whom where when why how all
	each every both few more most other some such no nor not
	only own same so than too very just also now new one
	two first last many much get got go going make made take
	use using via about into over after before between through
`)

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(text)
	set := make(map[string]struct{}, len(words))

	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}

// ExtractTopics scores the candidate words of an article. Title words count
// three times as much as summary words; scores are shares of the total count.
// Words scoring below 0.05 are dropped and at most ten topics are returned,
// highest score first.
func ExtractTopics(title string, summary string) []domain.TopicScore {
	counts := make(map[string]int)

	for _, word := range tokenize(title) {
		if isTopicWord(word) {
			counts[word] += titleWordWeight
		}
	}

	for _, word := range tokenize(summary) {
		if isTopicWord(word) {
			counts[word] += summaryWordWeight
		}
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return []domain.TopicScore{}
	}

	topics := make([]domain.TopicScore, 0, len(counts))
	for word, c := range counts {
		score := float64(c) / float64(total)
		if score < minTopicScore {
			continue
		}

		topics = append(topics, domain.TopicScore{Topic: word, Score: score})
	}

	slices.SortFunc(topics, func(a, b domain.TopicScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}

		return strings.Compare(a.Topic, b.Topic)
	})

	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}

	return topics
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphabetic(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, lowerWord(f))
	}

	return tokens
}

// isAlphabetic reports the Unicode Alphabetic property, which unlike
// unicode.IsLetter also covers dependent vowel signs and similar marks.
func isAlphabetic(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.Is(unicode.Nl, r) ||
		unicode.In(r, unicode.Other_Alphabetic, unicode.Other_Lowercase, unicode.Other_Uppercase)
}

// lowerWord lowercases a word, mapping a word-final capital sigma to ς.
func lowerWord(word string) string {
	if !strings.ContainsRune(word, 'Σ') {
		return strings.ToLower(word)
	}

	runes := []rune(word)

	var b strings.Builder
	b.Grow(len(word))

	for i, r := range runes {
		switch {
		case r != 'Σ':
			b.WriteString(strings.ToLower(string(r)))
		case isFinalSigma(runes, i):
			b.WriteRune('ς')
		default:
			b.WriteRune('σ')
		}
	}

	return b.String()
}

func isFinalSigma(runes []rune, i int) bool {
	preceded := false
	for j := i - 1; j >= 0; j-- {
		if isCased(runes[j]) {
			preceded = true
			break
		}
		if !isCaseIgnorable(runes[j]) {
			break
		}
	}

	if !preceded {
		return false
	}

	for j := i + 1; j < len(runes); j++ {
		if isCased(runes[j]) {
			return false
		}
		if !isCaseIgnorable(runes[j]) {
			break
		}
	}

	return true
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r) ||
		unicode.In(r, unicode.Other_Lowercase, unicode.Other_Uppercase)
}

func isCaseIgnorable(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Me, unicode.Cf, unicode.Lm, unicode.Sk)
}

func isTopicWord(word string) bool {
	if len(word) < minTopicWordLen {
		return false
	}

	if _, ok := stopWords[word]; ok {
		return false
	}

	return strings.ContainsFunc(word, func(r rune) bool {
		return r < '0' || r > '9'
	})
}
