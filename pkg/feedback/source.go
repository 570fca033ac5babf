package feedback

import "context"

// LogSource supplies the full current log of rated interactions, in a
// stable order. Implementations back onto whatever storage records ratings;
// the retrieval service re-reads the whole log on every rebuild.
type LogSource interface {
	Load(ctx context.Context) ([]RawEntry, error)
}

// SliceSource is an in-memory LogSource, mainly for tests and fixtures.
type SliceSource []RawEntry

func (s SliceSource) Load(context.Context) ([]RawEntry, error) {
	return []RawEntry(s), nil
}
