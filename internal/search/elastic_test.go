package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

// newTestIndex answers the client's product check itself and hands every
// other request to handle.
func newTestIndex(t *testing.T, handle func(r *http.Request) (*http.Response, error)) Index {
	t.Helper()
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			return jsonResponse(t, http.StatusOK, map[string]any{
				"name":         "test",
				"cluster_name": "lms",
				"version": map[string]any{
					"number":       "7.17.0",
					"build_flavor": "default",
				},
				"tagline": "You Know, for Search",
			}), nil
		}
		return handle(r)
	})
	idx, err := NewElasticIndex(Config{
		Addresses:   []string{"http://elastic.local:9200"},
		CourseIndex: "lms.course",
		CourseType:  "course",
		LessonIndex: "lms.lesson",
		Transport:   transport,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewElasticIndex: %v", err)
	}
	return idx
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

func TestSearchByOwnerRequestShape(t *testing.T) {
	var captured map[string]any
	var query url.Values
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/lms.course/_search" {
			t.Fatalf("path: want=%q got=%q", "/lms.course/_search", r.URL.Path)
		}
		query = r.URL.Query()
		captured = decodeBody(t, r)
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{
				"total": map[string]any{"value": 12, "relation": "eq"},
				"hits": []any{
					map[string]any{"_id": `["t1","c1"]`, "_source": map[string]any{"id": "c1", "course_name": "Go"}},
					map[string]any{"_id": `["t1","c2"]`, "_source": map[string]any{"id": "c2", "course_name": "Rust"}},
				},
			},
		}), nil
	})

	res, err := idx.SearchByOwner(context.Background(), "t1", 2, Projection{Includes: []string{"id", "course_name"}})
	if err != nil {
		t.Fatalf("SearchByOwner: %v", err)
	}
	if res.Total != 12 {
		t.Errorf("Total = %d, want 12", res.Total)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("len(Hits) = %d, want 2", len(res.Hits))
	}
	var first map[string]any
	if err := json.Unmarshal(res.Hits[0], &first); err != nil || first["id"] != "c1" {
		t.Errorf("first hit = %s (%v)", res.Hits[0], err)
	}

	if query.Get("from") != "10" || query.Get("size") != "10" {
		t.Errorf("from/size = %q/%q, want 10/10", query.Get("from"), query.Get("size"))
	}
	if query.Get("_source_includes") != "id,course_name" {
		t.Errorf("_source_includes = %q", query.Get("_source_includes"))
	}
	if captured["track_total_hits"] != true {
		t.Errorf("track_total_hits = %v", captured["track_total_hits"])
	}
	want := ownerQuery("t1")["query"]
	if got := roundTrip(t, captured["query"]); !reflect.DeepEqual(got, roundTrip(t, want)) {
		t.Errorf("query = %v, want %v", got, want)
	}
}

func TestSearchByMemberLegacyTotalAndPageClamp(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if from := r.URL.Query().Get("from"); from != "0" {
			t.Errorf("from = %q, want 0", from)
		}
		body := decodeBody(t, r)
		term := body["query"].(map[string]any)["term"].(map[string]any)
		if term["members"] != "s1" {
			t.Errorf("term = %v", term)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{
				"total": 1,
				"hits":  []any{map[string]any{"_id": "x"}},
			},
		}), nil
	})

	res, err := idx.SearchByMember(context.Background(), "s1", -3, Projection{})
	if err != nil {
		t.Fatalf("SearchByMember: %v", err)
	}
	if res.Total != 1 || len(res.Hits) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if string(res.Hits[0]) != "{}" {
		t.Errorf("hit without _source = %s, want {}", res.Hits[0])
	}
}

func TestSearchErrorIsUnavailable(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusInternalServerError, map[string]any{
			"error":  map[string]any{"type": "search_phase_execution_exception", "reason": "all shards failed"},
			"status": 500,
		}), nil
	})

	res, err := idx.SearchCourses(context.Background(), CourseQuery{Text: "go"}, 1, Projection{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("err is not *OperationError: %T", err)
	}
	if opErr.StatusCode != http.StatusInternalServerError || opErr.Code != OperationErrorQueryFailed {
		t.Errorf("op error = %+v", opErr)
	}
	if opErr.Message != "search_phase_execution_exception: all shards failed" {
		t.Errorf("message = %q", opErr.Message)
	}
	if res.Hits == nil || res.Total != 0 {
		t.Errorf("failed search should return an empty page, got %+v", res)
	}
}

func TestSearchTransportErrorIsUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return nil, boom
	})
	_, err := idx.ListLessons(context.Background(), "t1", "c1", 1, Projection{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestListLessonsRequestShape(t *testing.T) {
	var captured map[string]any
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/lms.lesson/_search" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		captured = decodeBody(t, r)
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": 0}, "hits": []any{}},
		}), nil
	})
	res, err := idx.ListLessons(context.Background(), "t1", "c1", 1, Projection{})
	if err != nil {
		t.Fatalf("ListLessons: %v", err)
	}
	if res.Total != 0 || res.Hits == nil {
		t.Errorf("result = %+v", res)
	}
	sort, ok := captured["sort"].([]any)
	if !ok || len(sort) != 3 {
		t.Fatalf("sort = %v", captured["sort"])
	}
	for i, field := range []string{"created_at", "created_tick", "id"} {
		key, _ := sort[i].(map[string]any)[field].(map[string]any)
		if key["order"] != "desc" {
			t.Errorf("sort[%d] = %v, want %s desc", i, sort[i], field)
		}
	}
}

func TestGetByKey(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		p, err := url.PathUnescape(r.URL.EscapedPath())
		if err != nil {
			t.Fatalf("unescape: %v", err)
		}
		if want := `/lms.course/course/["t1","c1"]`; p != want {
			t.Errorf("path = %q, want %q", p, want)
		}
		if ex := r.URL.Query().Get("_source_excludes"); ex != "members" {
			t.Errorf("_source_excludes = %q", ex)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"_index":  "lms.course",
			"_id":     `["t1","c1"]`,
			"found":   true,
			"_source": map[string]any{"id": "c1", "teacher_id": "t1"},
		}), nil
	})
	doc, err := idx.GetByKey(context.Background(), "t1", "c1", Projection{Excludes: []string{"members"}})
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(doc, &got); err != nil || got["teacher_id"] != "t1" {
		t.Errorf("doc = %s (%v)", doc, err)
	}
}

func TestGetByKeyNotFound(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusNotFound, map[string]any{
			"_index": "lms.course",
			"_id":    `["t1","c9"]`,
			"found":  false,
		}), nil
	})
	_, err := idx.GetByKey(context.Background(), "t1", "c9", Projection{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("not found must not match ErrUnavailable")
	}
}

func TestGetByKeyMissingIndexIsUnavailable(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusNotFound, map[string]any{
			"error":  map[string]any{"type": "index_not_found_exception", "reason": "no such index [lms.course]"},
			"status": 404,
		}), nil
	})
	_, err := idx.GetByKey(context.Background(), "t1", "c1", Projection{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{Addresses: []string{"http://localhost:9200"}, CourseIndex: "lms.course", LessonIndex: "lms.lesson"}
	if err := good.Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}
	bad := []Config{
		{CourseIndex: "a", LessonIndex: "b"},
		{Addresses: []string{"localhost"}, CourseIndex: "a", LessonIndex: "b"},
		{Addresses: []string{"http://localhost:9200"}, LessonIndex: "b"},
		{Addresses: []string{"http://localhost:9200"}, CourseIndex: "a"},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
}

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestCallsAbortWhenContextExpires(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})
	calls := map[string]func(ctx context.Context) error{
		"SearchByOwner": func(ctx context.Context) error {
			_, err := idx.SearchByOwner(ctx, "t1", 1, Projection{})
			return err
		},
		"GetByKey": func(ctx context.Context) error {
			_, err := idx.GetByKey(ctx, "t1", "c1", Projection{})
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			start := time.Now()
			err := call(ctx)
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("call returned after %v", elapsed)
			}
			if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want DeadlineExceeded and ErrUnavailable", err)
			}
			var opErr *OperationError
			if !errors.As(err, &opErr) || opErr.Code != OperationErrorTimeout {
				t.Errorf("err = %#v, want code %s", err, OperationErrorTimeout)
			}
		})
	}
}

func TestPagesPastResultWindowOnlyCount(t *testing.T) {
	var query url.Values
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		query = r.URL.Query()
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": 20000}, "hits": []any{}},
		}), nil
	})

	tests := []struct {
		page       int
		from, size string
	}{
		{1000, "9990", "10"},
		{1001, "0", "0"},
		{50000, "0", "0"},
	}
	for _, tt := range tests {
		res, err := idx.SearchCourses(context.Background(), CourseQuery{}, tt.page, Projection{})
		if err != nil {
			t.Fatalf("page %d: %v", tt.page, err)
		}
		if query.Get("from") != tt.from || query.Get("size") != tt.size {
			t.Errorf("page %d: from/size = %s/%s, want %s/%s", tt.page, query.Get("from"), query.Get("size"), tt.from, tt.size)
		}
		if res.Total != 20000 || res.Hits == nil || len(res.Hits) != 0 {
			t.Errorf("page %d: result = %+v", tt.page, res)
		}
	}
}
