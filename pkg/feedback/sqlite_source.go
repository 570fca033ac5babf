package feedback

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/casetutor/casetutor/pkg/errors"
)

// SQLiteSource reads rated interactions from a sqlite database. It also
// accepts new ratings, so a single file can serve as both the tutor's
// rating sink and the retrieval service's log.
type SQLiteSource struct {
	db   *sql.DB
	once sync.Once
	err  error
}

// NewSQLiteSource opens (creating if needed) the ratings database at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to open ratings database")
	}
	return &SQLiteSource{db: db}, nil
}

func (s *SQLiteSource) ensureInitialized(ctx context.Context) error {
	s.once.Do(func() {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			s.err = errors.Wrap(err, errors.Config, "failed to set WAL mode")
			return
		}
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS ratings (
				id               TEXT PRIMARY KEY,
				rating           INTEGER NOT NULL,
				rated_text       TEXT NOT NULL,
				feedback_text    TEXT NOT NULL DEFAULT '',
				replacement_text TEXT NOT NULL DEFAULT '',
				context_snippet  TEXT NOT NULL DEFAULT '',
				created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
			)`)
		if err != nil {
			s.err = errors.Wrap(err, errors.Config, "failed to create ratings table")
		}
	})
	return s.err
}

// Add records one rated interaction. An existing id is overwritten, so a
// reviewer can revise a rating.
func (s *SQLiteSource) Add(ctx context.Context, entry RawEntry) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ratings
			(id, rating, rated_text, feedback_text, replacement_text, context_snippet)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Rating, entry.RatedText,
		entry.FeedbackText, entry.ReplacementText, entry.ContextSnippet)
	if err != nil {
		return errors.Wrap(err, errors.Provider, "failed to store rating")
	}
	return nil
}

// Load returns every recorded rating, oldest first.
func (s *SQLiteSource) Load(ctx context.Context) ([]RawEntry, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rating, rated_text, feedback_text, replacement_text, context_snippet
		FROM ratings ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.Provider, "failed to query ratings")
	}
	defer rows.Close()

	var entries []RawEntry
	for rows.Next() {
		var e RawEntry
		if err := rows.Scan(&e.ID, &e.Rating, &e.RatedText,
			&e.FeedbackText, &e.ReplacementText, &e.ContextSnippet); err != nil {
			return nil, errors.Wrap(err, errors.Provider, "failed to scan rating row")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Provider, "failed to iterate rating rows")
	}
	return entries, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
