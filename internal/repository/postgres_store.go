package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// expiresColumn holds the row deadline on PostgreSQL, which has no native
// row TTL. Reads skip rows past their deadline.
const expiresColumn = "expires_at"

// pgExecutor is the subset of *pgxpool.Pool the store uses.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresStore struct {
	db     pgExecutor
	logger zerolog.Logger
	now    func() time.Time
}

// NewPostgresStore creates a RecordStore backed by PostgreSQL tables that
// mirror the Cassandra layout plus an expires_at column.
func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) RecordStore {
	return &postgresStore{
		db:     pool,
		logger: logger.With().Str("store", "postgres").Logger(),
		now:    time.Now,
	}
}

// Upsert uses INSERT ... ON CONFLICT. InsertOnly only overwrites a
// conflicting row whose deadline has passed, which matches an expired
// Cassandra row being invisible to IF NOT EXISTS.
func (s *postgresStore) Upsert(ctx context.Context, table Table, row Row, opts UpsertOptions) error {
	cols, err := table.writeColumns(row, opts.Fields)
	if err != nil {
		return err
	}
	var expiresAt *time.Time
	if ttl := ttlSeconds(opts.TTL); ttl > 0 {
		t := s.now().UTC().Add(time.Duration(ttl) * time.Second)
		expiresAt = &t
	}
	args := append(rowValues(row, cols), expiresAt)
	stmt := buildPGUpsert(table, cols, opts)

	tag, err := s.db.Exec(ctx, stmt, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("table", table.Name).Msg("upsert failed")
		return fmt.Errorf("%w: upsert into %s: %w", ErrUnavailable, table.Name, err)
	}
	if opts.InsertOnly && tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %v: %w", table.Name, rowValues(row, table.Key), ErrAlreadyExists)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, table Table, key Row, fields []string) (Row, error) {
	cols, err := table.readColumns(fields)
	if err != nil {
		return nil, err
	}
	keyVals, err := table.keyValues(key)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, buildPGSelect(table, cols), keyVals...)
	if err != nil {
		return nil, fmt.Errorf("%w: select from %s: %w", ErrUnavailable, table.Name, err)
	}
	raw, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %v: %w", table.Name, keyVals, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select from %s: %w", ErrUnavailable, table.Name, err)
	}
	out := make(Row, len(raw))
	for k, v := range raw {
		out[k] = normalizeValue(v)
	}
	return out, nil
}

func buildPGUpsert(table Table, cols []string, opts UpsertOptions) string {
	insertCols := append(append([]string(nil), cols...), expiresColumn)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		table.Name,
		strings.Join(insertCols, ", "),
		placeholders(len(insertCols), func(i int) string { return fmt.Sprintf("$%d", i+1) }),
		strings.Join(table.Key, ", "))

	var set []string
	switch {
	case opts.InsertOnly:
		// Reviving an expired row resets every column, like a fresh insert.
		for _, c := range table.Columns {
			if !table.isKey(c) {
				set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
			}
		}
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", expiresColumn, expiresColumn))
	default:
		for _, c := range cols {
			if !table.isKey(c) {
				set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
			}
		}
		if opts.TTL > 0 || len(opts.Fields) == 0 {
			set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", expiresColumn, expiresColumn))
		}
	}
	if len(set) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	fmt.Fprintf(&b, "DO UPDATE SET %s", strings.Join(set, ", "))
	if opts.InsertOnly {
		fmt.Fprintf(&b, " WHERE %s.%s IS NOT NULL AND %s.%s <= now()", table.Name, expiresColumn, table.Name, expiresColumn)
	}
	return b.String()
}

func buildPGSelect(table Table, cols []string) string {
	where := make([]string, 0, len(table.Key)+1)
	for i, k := range table.Key {
		where = append(where, fmt.Sprintf("%s = $%d", k, i+1))
	}
	where = append(where, fmt.Sprintf("(%s IS NULL OR %s > now())", expiresColumn, expiresColumn))
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(cols, ", "), table.Name, strings.Join(where, " AND "))
}
