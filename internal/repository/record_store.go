package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrAlreadyExists is returned by an insert-only upsert when a row with
	// the same key is already stored. The stored row is left untouched.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrUnavailable wraps connectivity and server side failures.
	ErrUnavailable = errors.New("record store unavailable")
	// ErrNotFound is returned by Get when no live row matches the key.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRow is returned when a row names unknown columns or lacks a
	// key value.
	ErrInvalidRow = errors.New("invalid row")
)

// Row maps column names to values.
type Row map[string]any

// Table describes a primary store table.
type Table struct {
	Name string
	// Key lists the partition and clustering columns in primary key order.
	Key []string
	// Columns lists every column, key columns included.
	Columns []string
}

// CourseTable is keyed by (teacher_id, id), the same order the index uses
// for course document ids.
var CourseTable = Table{
	Name:    "course",
	Key:     []string{"teacher_id", "id"},
	Columns: []string{"teacher_id", "id", "course_name", "description", "created_at", "archive", "topics", "members"},
}

// LessonTable is partitioned by (course_id, teacher_id) and clustered by id
// descending. created_tick holds the id's full resolution timestamp so the
// index can reproduce the clustering order.
var LessonTable = Table{
	Name:    "lesson",
	Key:     []string{"course_id", "teacher_id", "id"},
	Columns: []string{"course_id", "teacher_id", "id", "title", "content", "created_at", "created_tick"},
}

// UpsertOptions controls a single Upsert.
type UpsertOptions struct {
	// Fields restricts the write to these columns. Key columns are always
	// written. Empty means every column is written.
	Fields []string
	// InsertOnly makes the write conditional on the key being absent.
	InsertOnly bool
	// TTL expires the row after the given duration. Zero disables expiry.
	TTL time.Duration
}

// RecordStore is the primary, durable store for catalog rows.
type RecordStore interface {
	// Upsert writes row to table. It never touches the search index.
	Upsert(ctx context.Context, table Table, row Row, opts UpsertOptions) error
	// Get reads the row identified by key. An empty fields list reads every
	// column.
	Get(ctx context.Context, table Table, key Row, fields []string) (Row, error)
}

func (t Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (t Table) isKey(name string) bool {
	for _, k := range t.Key {
		if k == name {
			return true
		}
	}
	return false
}

// writeColumns returns the key columns followed by the requested columns.
func (t Table) writeColumns(row Row, fields []string) ([]string, error) {
	for _, k := range t.Key {
		if isEmpty(row[k]) {
			return nil, fmt.Errorf("%w: %s: missing key column %q", ErrInvalidRow, t.Name, k)
		}
	}
	if len(fields) == 0 {
		fields = t.Columns
	}
	cols := append([]string(nil), t.Key...)
	seen := make(map[string]bool, len(t.Columns))
	for _, k := range t.Key {
		seen[k] = true
	}
	for _, f := range fields {
		if !t.hasColumn(f) {
			return nil, fmt.Errorf("%w: %s: unknown column %q", ErrInvalidRow, t.Name, f)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		cols = append(cols, f)
	}
	return cols, nil
}

// readColumns returns the columns a Get selects. Key columns are always read.
func (t Table) readColumns(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return append([]string(nil), t.Columns...), nil
	}
	cols := append([]string(nil), t.Key...)
	for _, f := range fields {
		if !t.hasColumn(f) {
			return nil, fmt.Errorf("%w: %s: unknown column %q", ErrInvalidRow, t.Name, f)
		}
		if t.isKey(f) || contains(cols, f) {
			continue
		}
		cols = append(cols, f)
	}
	return cols, nil
}

func (t Table) keyValues(key Row) ([]any, error) {
	vals := make([]any, 0, len(t.Key))
	for _, k := range t.Key {
		v, ok := key[k]
		if !ok || isEmpty(v) {
			return nil, fmt.Errorf("%w: %s: missing key column %q", ErrInvalidRow, t.Name, k)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// ttlSeconds rounds a TTL up to whole seconds.
func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	secs := math.Ceil(ttl.Seconds())
	if secs > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(secs)
}

func rowValues(row Row, cols []string) []any {
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = row[c]
	}
	return vals
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// normalizeValue turns generic array values into []string so callers see
// the same shapes from every backend.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return x
			}
			out = append(out, s)
		}
		return out
	}
	return v
}
