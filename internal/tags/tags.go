// Package tags derives a bounded list of representative keywords from text.
package tags

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTopN is the number of tags kept per document.
const DefaultTopN = 10

// Config holds tag extraction configuration.
type Config struct {
	// Stopwords maps an ISO 639-1 language code to the words ignored for it.
	// A nil map selects DefaultStopwords; an empty map disables stopwords.
	Stopwords map[string][]string
	Logger    *slog.Logger
}

// Extractor ranks tokens by frequency. It is safe for concurrent use.
type Extractor struct {
	stopwords map[string]map[string]struct{}
	union     map[string]struct{}
	logger    *slog.Logger
}

// New creates a tag extractor.
func New(config Config) *Extractor {
	if config.Stopwords == nil {
		config.Stopwords = DefaultStopwords()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	e := &Extractor{
		stopwords: make(map[string]map[string]struct{}, len(config.Stopwords)),
		union:     make(map[string]struct{}),
		logger:    config.Logger,
	}
	for lang, words := range config.Stopwords {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = lowercase(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			set[w] = struct{}{}
			e.union[w] = struct{}{}
		}
		e.stopwords[strings.ToLower(lang)] = set
	}
	return e
}

// Extract returns up to topN tokens ordered by descending frequency.
// Ties keep the order in which the tokens first appear in text.
func (e *Extractor) Extract(text string, topN int) []string {
	if topN <= 0 {
		return []string{}
	}

	tokens := Tokenize(lowercase(text))
	stop := e.stopwordsFor(text)

	type entry struct {
		token string
		count int
		first int
	}
	index := make(map[string]*entry)
	var entries []*entry
	for _, tok := range tokens {
		if _, skip := stop[tok]; skip {
			continue
		}
		if en, ok := index[tok]; ok {
			en.count++
			continue
		}
		en := &entry{token: tok, count: 1, first: len(entries)}
		index[tok] = en
		entries = append(entries, en)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	if len(entries) > topN {
		entries = entries[:topN]
	}
	result := make([]string, len(entries))
	for i, en := range entries {
		result[i] = en.token
	}
	return result
}

// stopwordsFor selects the stopword set of the detected language, falling back
// to the union of all configured sets.
func (e *Extractor) stopwordsFor(text string) map[string]struct{} {
	if len(e.stopwords) == 0 {
		return nil
	}
	lang := DetectLanguage(text)
	if set, ok := e.stopwords[lang]; ok {
		e.logger.Debug("selected stopwords", "language", lang, "count", len(set))
		return set
	}
	return e.union
}

// DetectLanguage returns the ISO 639-1 code of the dominant language of text,
// or "" when it cannot be determined.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}

// lowercase builds a Caser per call; Casers are stateful and must not be shared.
func lowercase(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Tokenize splits text into words, dropping punctuation.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
