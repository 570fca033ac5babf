package feedback

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetutor/casetutor/pkg/errors"
)

// hashEmbedder is a deterministic fake: texts sharing a prefix embed near
// each other.
type hashEmbedder struct {
	failOn string
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New(errors.Provider, "embedding backend unavailable")
	}
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func ratedEntries(n int) []RawEntry {
	entries := make([]RawEntry, n)
	for i := range entries {
		entries[i] = RawEntry{
			ID:        fmt.Sprintf("r%d", i),
			Rating:    (i % 5) + 1,
			RatedText: fmt.Sprintf("tutor reply %d", i),
		}
	}
	return entries
}

func TestIngestSkipsMalformed(t *testing.T) {
	svc := NewRetrievalService(nil, &hashEmbedder{})

	raw := ratedEntries(7)
	raw = append(raw,
		RawEntry{ID: "blank", Rating: 3, RatedText: "   "},
		RawEntry{ID: "low", Rating: 0, RatedText: "text"},
		RawEntry{ID: "high", Rating: 6, RatedText: "text"},
	)

	entries := svc.Ingest(raw)
	assert.Len(t, entries, 7, "malformed entries skipped, valid ones kept")
}

func TestRebuildAndQuery(t *testing.T) {
	source := SliceSource{
		{ID: "a", Rating: 5, RatedText: "Asked an open question about onset", FeedbackText: "good pacing"},
		{ID: "b", Rating: 2, RatedText: "Gave away the diagnosis immediately"},
		{ID: "c", Rating: 4, RatedText: "Asked an open question about severity"},
	}
	svc := NewRetrievalService(source, &hashEmbedder{}, WithWorkers(2))

	require.NoError(t, svc.Rebuild(context.Background()))
	assert.Equal(t, 3, svc.Len())

	got := svc.Query(context.Background(), "Asked an open question about onset", 2)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "Asked an open question about onset")
	assert.Contains(t, got[0], "rated 5/5")
	assert.Contains(t, got[0], "good pacing")
}

func TestQueryBeforeRebuildIsEmpty(t *testing.T) {
	svc := NewRetrievalService(SliceSource(ratedEntries(3)), &hashEmbedder{})
	assert.Empty(t, svc.Query(context.Background(), "anything", 3))
}

func TestQueryDegradesOnEmbedFailure(t *testing.T) {
	emb := &hashEmbedder{}
	svc := NewRetrievalService(SliceSource(ratedEntries(3)), emb)
	require.NoError(t, svc.Rebuild(context.Background()))

	emb.failOn = "broken query"
	assert.Empty(t, svc.Query(context.Background(), "broken query", 2),
		"a failing embedder yields no exemplars, not an error")
}

func TestRebuildSkipsFailedEmbeddings(t *testing.T) {
	source := SliceSource{
		{ID: "a", Rating: 5, RatedText: "kept one"},
		{ID: "b", Rating: 3, RatedText: "poisoned entry"},
		{ID: "c", Rating: 4, RatedText: "kept two"},
	}
	svc := NewRetrievalService(source, &hashEmbedder{failOn: "poisoned"})

	require.NoError(t, svc.Rebuild(context.Background()))
	assert.Equal(t, 2, svc.Len())
}

func TestRebuildAllEmbeddingsFail(t *testing.T) {
	svc := NewRetrievalService(SliceSource(ratedEntries(2)), &hashEmbedder{failOn: "tutor"})

	err := svc.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.Provider, errors.CodeOf(err))
}

func TestRebuildSourceError(t *testing.T) {
	svc := NewRetrievalService(failingSource{}, &hashEmbedder{})

	err := svc.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.Provider, errors.CodeOf(err))
}

func TestRebuildEmptyLog(t *testing.T) {
	svc := NewRetrievalService(SliceSource{}, &hashEmbedder{})
	require.NoError(t, svc.Rebuild(context.Background()))
	assert.Zero(t, svc.Len())
	assert.Empty(t, svc.Query(context.Background(), "x", 3))
}

func TestRebuildReplacesPriorIndex(t *testing.T) {
	source := &mutableSource{entries: ratedEntries(5)}
	svc := NewRetrievalService(source, &hashEmbedder{})

	require.NoError(t, svc.Rebuild(context.Background()))
	assert.Equal(t, 5, svc.Len())

	source.entries = ratedEntries(2)
	require.NoError(t, svc.Rebuild(context.Background()))
	assert.Equal(t, 2, svc.Len())
}

type failingSource struct{}

func (failingSource) Load(context.Context) ([]RawEntry, error) {
	return nil, errors.New(errors.Provider, "log store down")
}

type mutableSource struct {
	entries []RawEntry
}

func (m *mutableSource) Load(context.Context) ([]RawEntry, error) {
	return m.entries, nil
}
