package feedback

import (
	"context"
	"io"
	"os"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/ipc"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/casetutor/casetutor/pkg/errors"
)

// RatingsSchema is the Arrow schema for exported rating logs. Analytics
// pipelines that rate transcripts offline hand the results back as an
// Arrow IPC file with exactly these columns.
var RatingsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.BinaryTypes.String},
	{Name: "rating", Type: arrow.PrimitiveTypes.Int64},
	{Name: "rated_text", Type: arrow.BinaryTypes.String},
	{Name: "feedback_text", Type: arrow.BinaryTypes.String},
	{Name: "replacement_text", Type: arrow.BinaryTypes.String},
	{Name: "context_snippet", Type: arrow.BinaryTypes.String},
}, nil)

// ArrowSource reads rated interactions from an Arrow IPC file.
type ArrowSource struct {
	path string
}

// NewArrowSource creates a source over the IPC file at path. The file is
// opened on each Load, so a replaced export is picked up by the next
// rebuild.
func NewArrowSource(path string) *ArrowSource {
	return &ArrowSource{path: path}
}

// Load reads every record batch in the file, in order.
func (s *ArrowSource) Load(ctx context.Context) ([]RawEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to open ratings export")
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, errors.Wrap(err, errors.Provider, "failed to read arrow file")
	}
	defer r.Close()

	var entries []RawEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.Provider, "ratings export load canceled")
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.Provider, "failed to read record batch")
		}
		batch, err := recordEntries(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
	}
	return entries, nil
}

func recordEntries(rec arrow.Record) ([]RawEntry, error) {
	id, err := stringColumn(rec, "id")
	if err != nil {
		return nil, err
	}
	rated, err := stringColumn(rec, "rated_text")
	if err != nil {
		return nil, err
	}
	feedback, err := stringColumn(rec, "feedback_text")
	if err != nil {
		return nil, err
	}
	replacement, err := stringColumn(rec, "replacement_text")
	if err != nil {
		return nil, err
	}
	snippet, err := stringColumn(rec, "context_snippet")
	if err != nil {
		return nil, err
	}
	rating, err := int64Column(rec, "rating")
	if err != nil {
		return nil, err
	}

	entries := make([]RawEntry, rec.NumRows())
	for i := range entries {
		entries[i] = RawEntry{
			ID:              id.Value(i),
			Rating:          int(rating.Value(i)),
			RatedText:       rated.Value(i),
			FeedbackText:    feedback.Value(i),
			ReplacementText: replacement.Value(i),
			ContextSnippet:  snippet.Value(i),
		}
	}
	return entries, nil
}

func stringColumn(rec arrow.Record, name string) (*array.String, error) {
	col, err := column(rec, name)
	if err != nil {
		return nil, err
	}
	s, ok := col.(*array.String)
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.Validation, "ratings export column has wrong type"),
			errors.Fields{"column": name, "want": "string"},
		)
	}
	return s, nil
}

func int64Column(rec arrow.Record, name string) (*array.Int64, error) {
	col, err := column(rec, name)
	if err != nil {
		return nil, err
	}
	n, ok := col.(*array.Int64)
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.Validation, "ratings export column has wrong type"),
			errors.Fields{"column": name, "want": "int64"},
		)
	}
	return n, nil
}

func column(rec arrow.Record, name string) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, errors.WithFields(
			errors.New(errors.Validation, "ratings export missing column"),
			errors.Fields{"column": name},
		)
	}
	return rec.Column(indices[0]), nil
}
