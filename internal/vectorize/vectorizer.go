// Package vectorize implements a TF-IDF vectorizer over unigrams and bigrams
// with smoothed inverse document frequency and L2-normalised rows.
package vectorize

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Descriptor identifies the vectorization scheme in index manifests.
const Descriptor = "tfidf(1,2)"

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("vectorizer is not fitted")

// Options configures a Vectorizer.
type Options struct {
	// NGramMax is the largest n-gram size (default 2).
	NGramMax int
	// MaxDF drops terms present in more than this fraction of documents.
	// Zero selects the corpus-size rule: 1.0 under two documents, else 0.9.
	MaxDF float64
}

// Vectorizer maps text to TF-IDF sparse vectors. Its exported fields are the
// fitted state and are gob-encoded inside index artifacts.
type Vectorizer struct {
	// Vocabulary maps a term to its column. Columns follow lexical term order.
	Vocabulary map[string]int
	// IDF holds the inverse document frequency of each column.
	IDF []float64
	// NGramMax is the largest n-gram size used during analysis.
	NGramMax int
	// MaxDF is the document frequency cutoff applied during Fit.
	MaxDF float64
	// Fitted is set once Fit succeeds. An empty vocabulary is still fitted.
	Fitted bool

	analyzerOnce sync.Once
	analyzer     *analyzer
	termsOnce    sync.Once
	terms        []string
}

// New creates an unfitted vectorizer.
func New(opts Options) *Vectorizer {
	if opts.NGramMax <= 0 {
		opts.NGramMax = 2
	}
	return &Vectorizer{NGramMax: opts.NGramMax, MaxDF: opts.MaxDF}
}

// MaxDFFor returns the document frequency cutoff used for a corpus of n documents.
func MaxDFFor(n int) float64 {
	if n < 2 {
		return 1.0
	}
	return 0.9
}

// Fit learns the vocabulary and IDF weights from docs.
// Terms whose document frequency exceeds MaxDF*len(docs) are pruned; if that
// leaves nothing, the vocabulary is empty and every vector is zero.
func (v *Vectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return errors.New("fit requires at least one document")
	}
	maxDF := v.MaxDF
	if maxDF <= 0 {
		maxDF = MaxDFFor(len(docs))
	}
	if maxDF > 1 {
		return fmt.Errorf("max_df %.2f out of range (0, 1]", maxDF)
	}
	v.MaxDF = maxDF

	an := v.getAnalyzer()
	df := make(map[string]int)
	for _, doc := range docs {
		for term := range an.counts(doc) {
			df[term]++
		}
	}

	limit := maxDF * float64(len(docs))
	terms := make([]string, 0, len(df))
	for term, n := range df {
		if float64(n) > limit {
			continue
		}
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for col, term := range terms {
		v.Vocabulary[term] = col
		v.IDF[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	v.terms = terms
	v.Fitted = true
	return nil
}

// FitTransform fits on docs and returns one vector per document, in order.
func (v *Vectorizer) FitTransform(docs []string) ([]SparseVector, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	rows := make([]SparseVector, len(docs))
	for i, doc := range docs {
		rows[i] = v.transform(doc)
	}
	return rows, nil
}

// Transform vectorizes text with the fitted vocabulary. Unknown terms are ignored.
func (v *Vectorizer) Transform(text string) (SparseVector, error) {
	if !v.Fitted {
		return SparseVector{}, ErrNotFitted
	}
	return v.transform(text), nil
}

func (v *Vectorizer) transform(text string) SparseVector {
	weights := make(map[int]float64)
	for term, count := range v.getAnalyzer().counts(text) {
		col, ok := v.Vocabulary[term]
		if !ok {
			continue
		}
		weights[col] = float64(count) * v.IDF[col]
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(weights)),
		Values:  make([]float64, 0, len(weights)),
	}
	for col := range weights {
		vec.Indices = append(vec.Indices, col)
	}
	sort.Ints(vec.Indices)

	var sum float64
	for _, col := range vec.Indices {
		sum += weights[col] * weights[col]
	}
	norm := math.Sqrt(sum)
	for _, col := range vec.Indices {
		vec.Values = append(vec.Values, weights[col]/norm)
	}
	return vec
}

// Dim returns the vocabulary size.
func (v *Vectorizer) Dim() int {
	return len(v.Vocabulary)
}

// Terms returns the vocabulary ordered by column. Safe for concurrent use
// once fitting is done.
func (v *Vectorizer) Terms() []string {
	v.termsOnce.Do(func() {
		if len(v.terms) == len(v.Vocabulary) {
			return
		}
		v.terms = make([]string, len(v.Vocabulary))
		for term, col := range v.Vocabulary {
			v.terms[col] = term
		}
	})
	return v.terms
}

func (v *Vectorizer) getAnalyzer() *analyzer {
	v.analyzerOnce.Do(func() {
		v.analyzer = newAnalyzer(v.NGramMax)
	})
	return v.analyzer
}
