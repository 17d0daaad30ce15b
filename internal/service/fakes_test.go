package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lms/internal/idclock"
	"lms/internal/paging"
	"lms/internal/pubsub"
	"lms/internal/repository"
	"lms/internal/search"
)

// memStore is an in-memory RecordStore with the same conflict semantics as
// the real adapters.
type memStore struct {
	mu       sync.Mutex
	tables   map[string]map[string]repository.Row
	lastOpts repository.UpsertOptions
	upserts  int
	err      error
	getErr   error
}

func newMemStore() *memStore {
	return &memStore{tables: map[string]map[string]repository.Row{}}
}

func rowKey(table repository.Table, row repository.Row) string {
	parts := make([]string, len(table.Key))
	for i, k := range table.Key {
		parts[i] = fmt.Sprint(row[k])
	}
	return strings.Join(parts, "|")
}

func (m *memStore) Upsert(_ context.Context, table repository.Table, row repository.Row, opts repository.UpsertOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.lastOpts = opts
	if m.err != nil {
		return m.err
	}
	rows := m.tables[table.Name]
	if rows == nil {
		rows = map[string]repository.Row{}
		m.tables[table.Name] = rows
	}
	k := rowKey(table, row)
	existing, exists := rows[k]
	if exists && opts.InsertOnly {
		return fmt.Errorf("%s %s: %w", table.Name, k, repository.ErrAlreadyExists)
	}
	next := repository.Row{}
	if exists && len(opts.Fields) > 0 {
		for c, v := range existing {
			next[c] = v
		}
	}
	cols := opts.Fields
	if len(cols) == 0 {
		cols = table.Columns
	}
	for _, c := range append(append([]string(nil), table.Key...), cols...) {
		next[c] = row[c]
	}
	rows[k] = next
	return nil
}

func (m *memStore) Get(_ context.Context, table repository.Table, key repository.Row, fields []string) (repository.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.tables[table.Name][rowKey(table, key)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", table.Name, repository.ErrNotFound)
	}
	out := repository.Row{}
	if len(fields) == 0 {
		for c, v := range row {
			out[c] = v
		}
		return out, nil
	}
	for _, c := range append(append([]string(nil), table.Key...), fields...) {
		out[c] = row[c]
	}
	return out, nil
}

func (m *memStore) rows(table repository.Table) []repository.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Row, 0, len(m.tables[table.Name]))
	for _, r := range m.tables[table.Name] {
		out = append(out, r)
	}
	return out
}

// fakeIndex only sees rows once propagate copies them over, like the
// external indexing pipeline.
type fakeIndex struct {
	mu       sync.Mutex
	courses  []repository.Row
	lessons  []repository.Row
	err      error
	getErr   error
	lastPage int
	lastID   string
	lastProj search.Projection
	calls    int
}

func (f *fakeIndex) propagate(store *memStore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses = store.rows(repository.CourseTable)
	f.lessons = store.rows(repository.LessonTable)
}

func (f *fakeIndex) page(rows []repository.Row, page int) (search.Result, error) {
	res := search.Result{Hits: []json.RawMessage{}, Total: int64(len(rows))}
	from := paging.Offset(page)
	for i := from; i < len(rows) && i < from+paging.PageSize; i++ {
		raw, err := json.Marshal(rows[i])
		if err != nil {
			return search.Result{}, err
		}
		res.Hits = append(res.Hits, raw)
	}
	return res, nil
}

func (f *fakeIndex) filterCourses(match func(repository.Row) bool) []repository.Row {
	var out []repository.Row
	for _, r := range f.courses {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return fmt.Sprint(out[i]["id"]) < fmt.Sprint(out[j]["id"]) })
	return out
}

func (f *fakeIndex) record(id string, page int, proj search.Projection) {
	f.calls++
	f.lastID = id
	f.lastPage = page
	f.lastProj = proj
}

func (f *fakeIndex) SearchByMember(_ context.Context, studentID string, page int, proj search.Projection) (search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(studentID, page, proj)
	if f.err != nil {
		return search.Result{Hits: []json.RawMessage{}}, f.err
	}
	return f.page(f.filterCourses(func(r repository.Row) bool {
		members, _ := r["members"].([]string)
		for _, m := range members {
			if m == studentID {
				return true
			}
		}
		return false
	}), page)
}

func (f *fakeIndex) SearchByOwner(_ context.Context, teacherID string, page int, proj search.Projection) (search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(teacherID, page, proj)
	if f.err != nil {
		return search.Result{Hits: []json.RawMessage{}}, f.err
	}
	return f.page(f.filterCourses(func(r repository.Row) bool { return r["teacher_id"] == teacherID }), page)
}

func (f *fakeIndex) SearchCourses(_ context.Context, q search.CourseQuery, page int, proj search.Projection) (search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(q.Text, page, proj)
	if f.err != nil {
		return search.Result{Hits: []json.RawMessage{}}, f.err
	}
	return f.page(f.filterCourses(func(r repository.Row) bool {
		if archived, _ := r["archive"].(bool); archived {
			return false
		}
		topics, _ := r["topics"].([]string)
		for _, want := range q.Topics {
			found := false
			for _, t := range topics {
				found = found || t == want
			}
			if !found {
				return false
			}
		}
		name, _ := r["course_name"].(string)
		return q.Text == "" || strings.Contains(strings.ToLower(name), strings.ToLower(q.Text))
	}), page)
}

func (f *fakeIndex) GetByKey(_ context.Context, teacherID, courseID string, proj search.Projection) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(courseID, 0, proj)
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.courses {
		if r["teacher_id"] == teacherID && r["id"] == courseID {
			raw, err := json.Marshal(r)
			return raw, err
		}
	}
	return nil, &search.OperationError{Code: search.OperationErrorNotFound, Operation: "get_by_key", StatusCode: 404}
}

func (f *fakeIndex) ListLessons(_ context.Context, teacherID, courseID string, page int, proj search.Projection) (search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(courseID, page, proj)
	if f.err != nil {
		return search.Result{Hits: []json.RawMessage{}}, f.err
	}
	var rows []repository.Row
	for _, r := range f.lessons {
		if r["teacher_id"] == teacherID && r["course_id"] == courseID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i]["created_at"].(time.Time), rows[j]["created_at"].(time.Time)
		if !a.Equal(b) {
			return a.After(b)
		}
		if ta, tb := rows[i]["created_tick"].(int64), rows[j]["created_tick"].(int64); ta != tb {
			return ta > tb
		}
		return str(rows[i]["id"]) > str(rows[j]["id"])
	})
	return f.page(rows, page)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []pubsub.ChangeEvent
	err    error
}

func (n *recordingNotifier) NotifyChange(_ context.Context, ev pubsub.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

// scriptedClock hands out a fixed sequence of ids and decodes them as time
// uuids.
type scriptedClock struct {
	idclock.TimeUUID
	ids []string
}

func (c *scriptedClock) NewID() (string, error) {
	if len(c.ids) == 0 {
		return "", fmt.Errorf("scripted clock exhausted")
	}
	id := c.ids[0]
	c.ids = c.ids[1:]
	return id, nil
}
