package vectorize

import (
	"regexp"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/shingle"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
)

// tokenPattern keeps runs of two or more word runes; single characters are dropped.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}\p{Mn}_]{2,}`)

// analyzer turns text into the unigram and n-gram terms counted by the vectorizer.
type analyzer struct {
	tokenizer analysis.Tokenizer
	filters   []analysis.TokenFilter
}

func newAnalyzer(ngramMax int) *analyzer {
	a := &analyzer{
		tokenizer: regexptokenizer.NewRegexpTokenizer(tokenPattern),
		filters:   []analysis.TokenFilter{lowercase.NewLowerCaseFilter()},
	}
	if ngramMax > 1 {
		a.filters = append(a.filters, shingle.NewShingleFilter(2, ngramMax, true, " ", ""))
	}
	return a
}

// terms returns every term occurrence in text, n-grams included.
func (a *analyzer) terms(text string) []string {
	stream := a.tokenizer.Tokenize([]byte(text))
	for _, f := range a.filters {
		stream = f.Filter(stream)
	}
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out
}

// counts returns term occurrence counts for text.
func (a *analyzer) counts(text string) map[string]int {
	counts := make(map[string]int)
	for _, t := range a.terms(text) {
		counts[t]++
	}
	return counts
}
