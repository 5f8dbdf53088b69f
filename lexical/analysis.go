package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Analyzer names.
const (
	AnalyzerStandard = "standard"
	AnalyzerStemming = "stemming"
	AnalyzerKeyword  = "keyword"
)

// Token is an analyzed term and its position in the source text.
// Positions count words before stop word removal, so phrases keep gaps.
type Token struct {
	Term string
	Pos  int
}

// Analyzer turns text into index terms.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	// Analyze tokenizes and normalizes text.
	Analyze(text string) []Token
	// Fold normalizes a single query fragment without stemming. It is used
	// for prefix terms, whose tail is unknown.
	Fold(text string) string
}

var analyzers = map[string]Analyzer{
	AnalyzerStandard: standardAnalyzer{},
	AnalyzerStemming: stemmingAnalyzer{},
	AnalyzerKeyword:  keywordAnalyzer{},
}

// AnalyzerByName returns a built-in analyzer.
func AnalyzerByName(name string) (Analyzer, bool) {
	a, ok := analyzers[name]
	return a, ok
}

// stopWords are dropped by the standard and stemming analyzers.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "for": {}, "from": {}, "have": {}, "if": {}, "in": {}, "is": {},
	"it": {}, "may": {}, "not": {}, "of": {}, "on": {}, "or": {}, "tbd": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "us": {}, "we": {}, "when": {},
	"will": {}, "with": {}, "yet": {}, "you": {}, "your": {},
}

// minTokenLen is the shortest term kept by the word analyzers.
const minTokenLen = 2

// foldText lowercases text and strips diacritics. Transformers carry state,
// so a fresh chain is built per call.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.Is(unicode.Mn, r)
}

// splitWords yields word runs. A dot joins two word runs ("3.14", "e.g").
func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if r == '.' && start >= 0 {
			next, _ := utf8.DecodeRuneInString(text[i+1:])
			if next != utf8.RuneError && isWordRune(next) {
				continue
			}
		}
		if start >= 0 {
			words = append(words, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

func wordTokens(text string, stem bool) []Token {
	words := splitWords(foldText(text))
	tokens := make([]Token, 0, len(words))
	for pos, w := range words {
		if utf8.RuneCountInString(w) < minTokenLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if stem {
			w = english.Stem(w, false)
		}
		tokens = append(tokens, Token{Term: w, Pos: pos})
	}
	return tokens
}

// standardAnalyzer splits words, folds case and accents, and drops stop words.
type standardAnalyzer struct{}

func (standardAnalyzer) Analyze(text string) []Token { return wordTokens(text, false) }
func (standardAnalyzer) Fold(text string) string     { return foldText(text) }

// stemmingAnalyzer is the standard analyzer plus English Snowball stemming.
type stemmingAnalyzer struct{}

func (stemmingAnalyzer) Analyze(text string) []Token { return wordTokens(text, true) }
func (stemmingAnalyzer) Fold(text string) string     { return foldText(text) }

// keywordAnalyzer indexes the trimmed value as a single exact term.
type keywordAnalyzer struct{}

func (keywordAnalyzer) Analyze(text string) []Token {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []Token{{Term: text}}
}

func (keywordAnalyzer) Fold(text string) string { return text }
