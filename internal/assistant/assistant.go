// Package assistant answers help questions extractively from the corpus index.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/search"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
	"github.com/Aman-CERP/catalogsearch/internal/textnorm"
)

const (
	// DefaultThreshold is the minimum top score needed to answer.
	DefaultThreshold = 0.1
	// DefaultLimit is the default number of retrieved chunks.
	DefaultLimit = 5
	// MaxAnswerRunes caps the answer text.
	MaxAnswerRunes = 800
	// answerHits is how many top chunks are stitched into the answer.
	answerHits = 2
)

// RefusalMessage is returned when the corpus holds nothing confident enough.
const RefusalMessage = "I could not find reliable information in the documentation to answer this question."

// Source is one retrieved chunk.
type Source struct {
	ID    string            `json:"id"`
	Score float64           `json:"score"`
	Meta  map[string]string `json:"meta"`
}

// Answer is the assistant's reply.
type Answer struct {
	TraceID string   `json:"trace_id"`
	Version string   `json:"version"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Refused reports whether the assistant declined to answer.
func (a *Answer) Refused() bool {
	return len(a.Sources) == 0
}

// Hit is a retrieved chunk with its text.
type Hit struct {
	ID    string
	Score float64
	Text  string
	Meta  map[string]string
}

// Assistant retrieves help chunks and assembles extractive answers.
type Assistant struct {
	index   search.IndexSource
	metrics *telemetry.Metrics
}

// New creates an assistant over the corpus index. metrics may be nil.
func New(idx search.IndexSource, metrics *telemetry.Metrics) *Assistant {
	return &Assistant{index: idx, metrics: metrics}
}

// retrieve returns the top max(k, 1) chunks for question, best first, and the
// version of the snapshot they came from.
func (a *Assistant) retrieve(ctx context.Context, question string, k int) ([]Hit, string, error) {
	idx, err := a.index.LoadOrBuild(ctx)
	if err != nil {
		return nil, "", err
	}
	if idx.Len() == 0 {
		return []Hit{}, idx.Version, nil
	}

	qv, err := idx.Vectorizer.Transform(textnorm.Normalize(question))
	if err != nil {
		return nil, "", errors.New(errors.ErrCodeSearchFailed, "vectorize question", err)
	}
	ranked := search.ScoreQuery(qv, idx)
	if k = max(k, 1); len(ranked) > k {
		ranked = ranked[:k]
	}

	hits := make([]Hit, len(ranked))
	for i, s := range ranked {
		hits[i] = Hit{ID: s.ID, Score: s.Score, Text: idx.Text(s.Pos), Meta: idx.MetaAt(s.Pos)}
	}
	return hits, idx.Version, nil
}

// Answer retrieves k chunks and answers from the best one or two, or refuses
// when nothing scores at least threshold. Every call gets a fresh trace id.
// threshold is used as given and must lie in [0, 1]; 0 answers whenever there
// is any hit. Callers apply DefaultThreshold when none was supplied.
func (a *Assistant) Answer(ctx context.Context, question string, k int, threshold float64) (*Answer, error) {
	if threshold < 0 || threshold > 1 {
		return nil, errors.ValidationError(fmt.Sprintf("threshold %.2f outside [0, 1]", threshold), nil)
	}
	start := time.Now()
	traceID := uuid.NewString()

	hits, version, err := a.retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	resp := &Answer{TraceID: traceID, Version: version, Sources: []Source{}}
	if len(hits) == 0 || hits[0].Score < threshold {
		resp.Answer = RefusalMessage
		a.metrics.Incr("assistant_refusals", 1)
	} else {
		resp.Answer = assemble(hits)
		for _, h := range hits {
			resp.Sources = append(resp.Sources, Source{ID: h.ID, Score: h.Score, Meta: h.Meta})
		}
	}

	elapsed := time.Since(start)
	a.metrics.RecordDuration(telemetry.OpAsk, elapsed)
	a.metrics.Incr(telemetry.OpAsk+"_calls", 1)
	slog.Info("assistant_ask",
		slog.String("trace_id", traceID),
		slog.Int64("time_ms", elapsed.Milliseconds()),
		slog.Int("q_len", len(question)),
		slog.Int("k", k),
		slog.String("version", version),
		slog.Int("hits", len(resp.Sources)),
		slog.Bool("refused", resp.Refused()))
	return resp, nil
}

// assemble joins the non-empty text of the top hits and caps it at MaxAnswerRunes.
func assemble(hits []Hit) string {
	snippets := make([]string, 0, answerHits)
	for _, h := range hits[:min(answerHits, len(hits))] {
		if h.Text != "" {
			snippets = append(snippets, h.Text)
		}
	}
	text := strings.Join(snippets, " ")
	if runes := []rune(text); len(runes) > MaxAnswerRunes {
		text = string(runes[:MaxAnswerRunes])
	}
	return text
}
