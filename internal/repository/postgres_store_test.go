package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const postgresTestSchema = `
CREATE TABLE IF NOT EXISTS course (
	teacher_id  text NOT NULL,
	id          text NOT NULL,
	course_name text,
	description text,
	created_at  timestamptz,
	archive     boolean,
	topics      text[],
	members     text[],
	expires_at  timestamptz,
	PRIMARY KEY (teacher_id, id)
);
CREATE TABLE IF NOT EXISTS lesson (
	course_id  text NOT NULL,
	teacher_id text NOT NULL,
	id         text NOT NULL,
	title      text,
	content    text,
	created_at timestamptz,
	created_tick bigint,
	expires_at timestamptz,
	PRIMARY KEY (course_id, teacher_id, id)
);
CREATE INDEX IF NOT EXISTS lesson_partition_newest_first ON lesson (course_id, teacher_id, id DESC);
`

func newPostgresTestStore(t *testing.T) (RecordStore, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set, skip postgres integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, postgresTestSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return NewPostgresStore(pool, zerolog.Nop()), pool
}

func TestPostgresStoreInsertOnlyConflict(t *testing.T) {
	store, _ := newPostgresTestStore(t)
	ctx := context.Background()

	row := Row{
		"teacher_id":  uuid.NewString(),
		"id":          uuid.NewString(),
		"course_name": "Distributed Systems",
		"created_at":  time.Now().UTC(),
		"archive":     false,
		"topics":      []string{"databases"},
		"members":     []string{},
	}
	if err := store.Upsert(ctx, CourseTable, row, UpsertOptions{InsertOnly: true}); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	changed := Row{}
	for k, v := range row {
		changed[k] = v
	}
	changed["course_name"] = "Renamed"
	err := store.Upsert(ctx, CourseTable, changed, UpsertOptions{InsertOnly: true})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second insert: err = %v, want ErrAlreadyExists", err)
	}

	got, err := store.Get(ctx, CourseTable, row, []string{"course_name", "topics"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["course_name"] != "Distributed Systems" {
		t.Errorf("course_name = %v, want unchanged", got["course_name"])
	}
	if topics, ok := got["topics"].([]string); !ok || len(topics) != 1 || topics[0] != "databases" {
		t.Errorf("topics = %#v", got["topics"])
	}
}

func TestPostgresStoreReplaceAndTTL(t *testing.T) {
	store, _ := newPostgresTestStore(t)
	ctx := context.Background()

	key := Row{"course_id": uuid.NewString(), "teacher_id": uuid.NewString(), "id": uuid.NewString()}
	row := Row{"title": "Intro", "content": "hello"}
	for k, v := range key {
		row[k] = v
	}
	if err := store.Upsert(ctx, LessonTable, row, UpsertOptions{TTL: time.Second}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	row["title"] = "Intro, revised"
	if err := store.Upsert(ctx, LessonTable, row, UpsertOptions{Fields: []string{"title"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := store.Get(ctx, LessonTable, key, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["title"] != "Intro, revised" || got["content"] != "hello" {
		t.Errorf("row = %v", got)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := store.Get(ctx, LessonTable, key, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired row: err = %v, want ErrNotFound", err)
	}
	if err := store.Upsert(ctx, LessonTable, row, UpsertOptions{InsertOnly: true}); err != nil {
		t.Fatalf("insert over expired row: %v", err)
	}
}
