package feedback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// RetrievalService turns a log of rated interactions into a queryable
// exemplar index. Queries are strictly best-effort: before the first
// successful rebuild, or whenever the embedding provider misbehaves, Query
// returns no exemplars and callers proceed with an un-enriched prompt.
type RetrievalService struct {
	source   LogSource
	embedder core.Embedder
	logger   *slog.Logger
	workers  int

	index *Index[Entry]

	// rebuildMu serializes rebuilds; queries keep flowing against the
	// previous snapshot until the new one is swapped in.
	rebuildMu sync.Mutex
}

// ServiceOption configures a RetrievalService.
type ServiceOption func(*RetrievalService)

// WithLogger sets the service's structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *RetrievalService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers bounds the parallelism of embedding computation during a
// rebuild.
func WithWorkers(n int) ServiceOption {
	return func(s *RetrievalService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewRetrievalService creates a service over the given log source and
// embedding provider.
func NewRetrievalService(source LogSource, embedder core.Embedder, opts ...ServiceOption) *RetrievalService {
	s := &RetrievalService{
		source:   source,
		embedder: embedder,
		logger:   slog.Default(),
		workers:  4,
		index:    NewIndex[Entry](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates raw log entries, skipping malformed ones. Bad data in
// one entry never blocks the rest of the batch.
func (s *RetrievalService) Ingest(raw []RawEntry) []Entry {
	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		if !r.Valid() {
			s.logger.Warn("skipping malformed feedback entry",
				"index", i, "id", r.ID, "rating", r.Rating)
			continue
		}
		entries = append(entries, Entry(r))
	}
	return entries
}

// Rebuild re-ingests the full current log, embeds every entry, and
// replaces the index wholesale. It is idempotent and safe to call while
// queries are in flight. The index is never mutated incrementally; full
// replacement avoids the id-drift and stale-payload bugs of partial
// updates.
func (s *RetrievalService) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	raw, err := s.source.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.Provider, "failed to load feedback log")
	}
	entries := s.Ingest(raw)
	if len(entries) == 0 {
		s.logger.Info("feedback log empty, installing empty index")
		return s.index.Build(nil, nil)
	}

	vectors := make([][]float32, len(entries))
	embedErrs := make([]error, len(entries))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, entry := range entries {
		p.Go(func() {
			vectors[i], embedErrs[i] = s.embedder.Embed(ctx, entry.EmbeddingText())
		})
	}
	p.Wait()

	// Entries whose embedding failed are dropped from this build; they
	// get another chance on the next rebuild.
	kept := make([]Entry, 0, len(entries))
	keptVectors := make([][]float32, 0, len(entries))
	for i, entry := range entries {
		if embedErrs[i] != nil {
			s.logger.Warn("skipping entry, embedding failed", "id", entry.ID, "err", embedErrs[i])
			continue
		}
		kept = append(kept, entry)
		keptVectors = append(keptVectors, vectors[i])
	}
	if len(kept) == 0 {
		return errors.New(errors.Provider, "embedding failed for every feedback entry")
	}

	if err := s.index.Build(keptVectors, kept); err != nil {
		return err
	}
	s.logger.Info("feedback index rebuilt", "entries", len(kept), "skipped", len(raw)-len(kept))
	return nil
}

// Query returns up to k exemplar texts similar to contextText, best first.
// It degrades to an empty result on a cold index or a failing embedding
// provider; prompt enrichment is optional and must never sink a turn.
func (s *RetrievalService) Query(ctx context.Context, contextText string, k int) []string {
	if s.index.Len() == 0 || k <= 0 {
		return nil
	}
	query, err := s.embedder.Embed(ctx, contextText)
	if err != nil {
		s.logger.Warn("exemplar query embedding failed", "err", err)
		return nil
	}
	hits := s.index.Search(query, k)
	return lo.Map(hits, func(h Hit[Entry], _ int) string {
		return h.Payload.ExemplarText()
	})
}

// Len returns the number of indexed exemplars.
func (s *RetrievalService) Len() int { return s.index.Len() }
