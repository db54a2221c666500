package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lower-cased word tokens with optional stopword removal.
type Tokenizer struct {
	stopwords map[string]struct{}
	useStops  bool
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(removeStopwords bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		useStops:  removeStopwords,
	}
}

// Tokenize splits text into tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if t.useStops {
			if _, isStop := t.stopwords[word]; isStop {
				continue
			}
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CharNGrams returns the character n-grams of token padded with '#' on both
// sides, so "rick" with n=3 yields #ri, ric, ick, ck#.
func CharNGrams(token string, n int) []string {
	if n <= 0 {
		return nil
	}
	runes := []rune("#" + token + "#")
	if len(runes) < n {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// splitWords splits text into words using unicode word boundaries.
// Apostrophes inside a word are dropped so "Rick's" becomes "Ricks".
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		case (r == '\'' || r == '’') && current.Len() > 0:
		default:
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "you", "your", "we", "our", "me", "my",
		"they", "their", "she", "her", "his", "him", "if", "or", "so",
		"do", "does", "did", "been", "being", "am", "im", "um", "uh",
		"oh", "just", "like", "yeah", "okay", "ok", "gonna", "gotta",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
