package index

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/store"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
	"github.com/Aman-CERP/catalogsearch/internal/textnorm"
	"github.com/Aman-CERP/catalogsearch/internal/vectorize"
)

// placeholderDoc is fitted when the corpus is empty so the snapshot still has
// a usable vectorizer.
const placeholderDoc = "empty"

// Provider owns one index kind: it builds from a DocumentSource, persists
// through an IndexStore, and hands out the current snapshot.
type Provider struct {
	source  DocumentSource
	store   store.IndexStore
	lock    *store.FileLock
	metrics *telemetry.Metrics

	mu      sync.Mutex
	current *store.Index
	stamp   string
}

// Option configures a Provider.
type Option func(*Provider)

// WithLock serialises load-or-build across processes.
func WithLock(lock *store.FileLock) Option {
	return func(p *Provider) { p.lock = lock }
}

// WithMetrics records build durations under telemetry.OpBuild.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// NewProvider creates a provider.
func NewProvider(source DocumentSource, s store.IndexStore, opts ...Option) *Provider {
	p := &Provider{source: source, store: s}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the index name.
func (p *Provider) Name() string {
	return p.store.Name()
}

// Build fetches the corpus, fits a vectorizer and persists the snapshot.
// An empty version defaults to the document count, which is not monotonic:
// callers needing ordered versions must pass one. Nothing is written when the
// source or the fit fails.
func (p *Provider) Build(ctx context.Context, version string) (*store.Index, error) {
	start := time.Now()

	docs, err := p.source.Documents(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorpusUnreachable, "fetch corpus for "+p.Name(), err)
	}
	if version == "" {
		version = strconv.Itoa(len(docs))
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	var stored []string
	var meta []map[string]string
	for i, d := range docs {
		ids[i] = d.ID
		texts[i] = textnorm.Normalize(d.Text)
		if d.Stored != "" && stored == nil {
			stored = make([]string, len(docs))
		}
		if d.Meta != nil && meta == nil {
			meta = make([]map[string]string, len(docs))
		}
	}
	for i, d := range docs {
		if stored != nil {
			stored[i] = d.Stored
		}
		if meta != nil {
			meta[i] = d.Meta
		}
	}

	v := vectorize.New(vectorize.Options{})
	rows := []vectorize.SparseVector{}
	if len(docs) == 0 {
		err = v.Fit([]string{placeholderDoc})
	} else {
		rows, err = v.FitTransform(texts)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "fit vectorizer for "+p.Name(), err)
	}
	if len(docs) > 0 && v.Dim() == 0 {
		slog.Warn("index_vocabulary_empty",
			slog.String("name", p.Name()),
			slog.Int("count", len(docs)))
	}

	idx := &store.Index{
		Name:       p.Name(),
		Version:    version,
		IDs:        ids,
		Texts:      stored,
		Meta:       meta,
		Vectors:    rows,
		Vectorizer: v,
	}
	if err := p.store.Save(ctx, idx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = idx
	p.stamp = p.manifestStamp(ctx)
	p.mu.Unlock()

	p.metrics.RecordDuration(telemetry.OpBuild, time.Since(start))
	slog.Info("index_built",
		slog.String("name", p.Name()),
		slog.String("version", version),
		slog.Int("count", idx.Len()),
		slog.Int("dim", idx.Dim()),
		slog.Duration("duration", time.Since(start)))
	return idx, nil
}

// Load returns the persisted snapshot, or nil if there is none.
func (p *Provider) Load(ctx context.Context) (*store.Index, error) {
	return p.store.Load(ctx)
}

// LoadOrBuild returns the current snapshot, building it with default
// parameters when nothing is persisted. A snapshot loaded earlier is reused
// until the manifest changes, so builds from other processes are picked up.
func (p *Provider) LoadOrBuild(ctx context.Context) (*store.Index, error) {
	stamp := p.manifestStamp(ctx)

	p.mu.Lock()
	if p.current != nil && stamp != "" && stamp == p.stamp {
		idx := p.current
		p.mu.Unlock()
		return idx, nil
	}
	p.mu.Unlock()

	idx, err := p.loadUsable(ctx)
	if err != nil || idx != nil {
		return p.remember(ctx, idx, err)
	}

	if p.lock != nil {
		if err := p.lock.Lock(); err != nil {
			return nil, errors.New(errors.ErrCodeIndexFailed, "lock index "+p.Name(), err)
		}
		defer func() {
			if err := p.lock.Unlock(); err != nil {
				slog.Warn("failed to release index lock", slog.String("error", err.Error()))
			}
		}()

		// Another process may have built it while we waited.
		idx, err = p.loadUsable(ctx)
		if err != nil || idx != nil {
			return p.remember(ctx, idx, err)
		}
	}

	return p.Build(ctx, "")
}

// CurrentVersion returns the manifest version, or "0".
func (p *Provider) CurrentVersion(ctx context.Context) string {
	return store.CurrentVersion(ctx, p.store)
}

// Manifest returns the current manifest, or nil.
func (p *Provider) Manifest(ctx context.Context) (*store.Manifest, error) {
	return p.store.Manifest(ctx)
}

// loadUsable loads the snapshot, treating a corrupt artifact as missing so
// the next build replaces it.
func (p *Provider) loadUsable(ctx context.Context) (*store.Index, error) {
	idx, err := p.store.Load(ctx)
	if errors.HasCode(err, errors.ErrCodeCorruptIndex) {
		slog.Warn("index_corrupt_rebuilding",
			slog.String("name", p.Name()),
			slog.String("error", err.Error()))
		return nil, nil
	}
	return idx, err
}

func (p *Provider) remember(ctx context.Context, idx *store.Index, err error) (*store.Index, error) {
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.current = idx
	p.stamp = p.manifestStamp(ctx)
	p.mu.Unlock()
	return idx, nil
}

// manifestStamp identifies the persisted snapshot; "" when unknown.
func (p *Provider) manifestStamp(ctx context.Context) string {
	m, err := p.store.Manifest(ctx)
	if err != nil || m == nil {
		return ""
	}
	return m.Version + "@" + m.Timestamp
}
