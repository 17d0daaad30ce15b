package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
)

type cassandraStore struct {
	session *gocql.Session
	logger  zerolog.Logger
}

// NewCassandraStore creates a RecordStore backed by a Cassandra (or
// Elassandra) keyspace. The session must already be bound to the keyspace.
func NewCassandraStore(session *gocql.Session, logger zerolog.Logger) RecordStore {
	return &cassandraStore{
		session: session,
		logger:  logger.With().Str("store", "cassandra").Logger(),
	}
}

// Upsert writes the row with INSERT, which Cassandra treats as an upsert.
// InsertOnly adds IF NOT EXISTS and turns an unapplied write into
// ErrAlreadyExists.
func (s *cassandraStore) Upsert(ctx context.Context, table Table, row Row, opts UpsertOptions) error {
	cols, err := table.writeColumns(row, opts.Fields)
	if err != nil {
		return err
	}
	stmt := buildCQLInsert(table, cols, opts)
	q := s.session.Query(stmt, rowValues(row, cols)...).WithContext(ctx)

	if !opts.InsertOnly {
		if err := q.Exec(); err != nil {
			s.logger.Error().Err(err).Str("table", table.Name).Msg("insert failed")
			return fmt.Errorf("%w: insert into %s: %w", ErrUnavailable, table.Name, err)
		}
		return nil
	}

	existing := map[string]any{}
	applied, err := q.MapScanCAS(existing)
	if err != nil {
		s.logger.Error().Err(err).Str("table", table.Name).Msg("conditional insert failed")
		return fmt.Errorf("%w: conditional insert into %s: %w", ErrUnavailable, table.Name, err)
	}
	if !applied {
		return fmt.Errorf("%s %v: %w", table.Name, rowValues(row, table.Key), ErrAlreadyExists)
	}
	return nil
}

func (s *cassandraStore) Get(ctx context.Context, table Table, key Row, fields []string) (Row, error) {
	cols, err := table.readColumns(fields)
	if err != nil {
		return nil, err
	}
	keyVals, err := table.keyValues(key)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	err = s.session.Query(buildCQLSelect(table, cols), keyVals...).WithContext(ctx).MapScan(raw)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, fmt.Errorf("%s %v: %w", table.Name, keyVals, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select from %s: %w", ErrUnavailable, table.Name, err)
	}
	out := make(Row, len(raw))
	for k, v := range raw {
		if u, ok := v.(gocql.UUID); ok {
			out[k] = u.String()
			continue
		}
		out[k] = normalizeValue(v)
	}
	return out, nil
}

func buildCQLInsert(table Table, cols []string, opts UpsertOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		table.Name, strings.Join(cols, ", "), placeholders(len(cols), func(int) string { return "?" }))
	if opts.InsertOnly {
		b.WriteString(" IF NOT EXISTS")
	}
	if ttl := ttlSeconds(opts.TTL); ttl > 0 {
		fmt.Fprintf(&b, " USING TTL %d", ttl)
	}
	return b.String()
}

func buildCQLSelect(table Table, cols []string) string {
	where := make([]string, len(table.Key))
	for i, k := range table.Key {
		where[i] = k + " = ?"
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(cols, ", "), table.Name, strings.Join(where, " AND "))
}

func placeholders(n int, ph func(i int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(i)
	}
	return strings.Join(parts, ", ")
}
