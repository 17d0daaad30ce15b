package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"lms/internal/paging"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/rs/zerolog"
)

// Config selects the cluster and the indices that hold course and lesson
// documents.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	CourseIndex string
	// CourseType is the mapping type used for point lookups on clusters that
	// still require one (Elassandra, Elasticsearch 6). Empty omits it.
	CourseType  string
	LessonIndex string
	// MaxResultWindow is the index.max_result_window setting of the indices.
	// Zero means DefaultMaxResultWindow.
	MaxResultWindow int
	// Transport replaces the default HTTP transport.
	Transport http.RoundTripper
}

// DefaultMaxResultWindow is the Elasticsearch default for
// index.max_result_window.
const DefaultMaxResultWindow = 10000

// Validate reports the first missing or malformed setting.
func (c Config) Validate() error {
	if len(c.Addresses) == 0 {
		return errors.New("ELASTICSEARCH_URLS is required")
	}
	for _, addr := range c.Addresses {
		u, err := url.Parse(addr)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid ELASTICSEARCH_URLS entry %q; expected absolute URL like http://elassandra:9200", addr)
		}
	}
	if c.CourseIndex == "" {
		return errors.New("COURSE_INDEX is required")
	}
	if c.LessonIndex == "" {
		return errors.New("LESSON_INDEX is required")
	}
	if c.MaxResultWindow < 0 {
		return errors.New("ELASTICSEARCH_MAX_RESULT_WINDOW must not be negative")
	}
	return nil
}

type elasticIndex struct {
	client *elasticsearch.Client
	cfg    Config
	logger zerolog.Logger
}

// NewElasticIndex creates an Index backed by an Elasticsearch compatible
// cluster. The client is safe for concurrent use.
func NewElasticIndex(cfg Config, logger zerolog.Logger) (Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxResultWindow == 0 {
		cfg.MaxResultWindow = DefaultMaxResultWindow
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &elasticIndex{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("index", "elasticsearch").Logger(),
	}, nil
}

func (x *elasticIndex) SearchByMember(ctx context.Context, studentID string, page int, proj Projection) (Result, error) {
	return x.search(ctx, "search_by_member", x.cfg.CourseIndex, memberQuery(studentID), page, proj)
}

func (x *elasticIndex) SearchByOwner(ctx context.Context, teacherID string, page int, proj Projection) (Result, error) {
	return x.search(ctx, "search_by_owner", x.cfg.CourseIndex, ownerQuery(teacherID), page, proj)
}

func (x *elasticIndex) SearchCourses(ctx context.Context, q CourseQuery, page int, proj Projection) (Result, error) {
	return x.search(ctx, "search_courses", x.cfg.CourseIndex, courseSearchQuery(q), page, proj)
}

func (x *elasticIndex) ListLessons(ctx context.Context, teacherID, courseID string, page int, proj Projection) (Result, error) {
	return x.search(ctx, "list_lessons", x.cfg.LessonIndex, lessonQuery(teacherID, courseID), page, proj)
}

func (x *elasticIndex) GetByKey(ctx context.Context, teacherID, courseID string, proj Projection) (json.RawMessage, error) {
	const op = "get_by_key"
	id, err := DocumentID(teacherID, courseID)
	if err != nil {
		return nil, opErr(op, OperationErrorEncodeFailed, 0, "", err)
	}
	req := esapi.GetRequest{
		Index:          x.cfg.CourseIndex,
		DocumentType:   x.cfg.CourseType,
		DocumentID:     id,
		SourceIncludes: proj.Includes,
		SourceExcludes: proj.Excludes,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		x.logger.Error().Err(err).Str("op", op).Msg("index request failed")
		return nil, transportErr(op, err)
	}
	defer res.Body.Close()

	var body struct {
		Found  *bool           `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, opErr(op, OperationErrorTransportFailed, res.StatusCode, "", err)
	}
	if res.StatusCode == http.StatusNotFound {
		if json.Unmarshal(raw, &body) == nil && body.Found != nil && !*body.Found {
			return nil, opErr(op, OperationErrorNotFound, res.StatusCode, "document "+id+" not found", nil)
		}
	}
	if res.IsError() {
		x.logger.Error().Int("status", res.StatusCode).Str("op", op).Msg("index returned an error")
		return nil, opErr(op, OperationErrorQueryFailed, res.StatusCode, errorReason(raw), nil)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, opErr(op, OperationErrorDecodeFailed, res.StatusCode, "", err)
	}
	if body.Found != nil && !*body.Found {
		return nil, opErr(op, OperationErrorNotFound, res.StatusCode, "document "+id+" not found", nil)
	}
	return sourceOrEmpty(body.Source), nil
}

type searchResponse struct {
	Hits struct {
		Total totalHits `json:"total"`
		Hits  []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (x *elasticIndex) search(ctx context.Context, op, index string, body map[string]any, page int, proj Projection) (Result, error) {
	empty := Result{Hits: []json.RawMessage{}}

	body["track_total_hits"] = true
	payload, err := json.Marshal(body)
	if err != nil {
		return empty, opErr(op, OperationErrorEncodeFailed, 0, "", err)
	}
	from := paging.Offset(page)
	size := paging.PageSize
	// The cluster rejects pages that end past the result window. Such a page
	// is empty, so only the total is fetched.
	if from+size > x.cfg.MaxResultWindow {
		from, size = 0, 0
	}
	req := esapi.SearchRequest{
		Index:          []string{index},
		Body:           bytes.NewReader(payload),
		From:           &from,
		Size:           &size,
		SourceIncludes: proj.Includes,
		SourceExcludes: proj.Excludes,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		x.logger.Error().Err(err).Str("op", op).Msg("index request failed")
		return empty, transportErr(op, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return empty, opErr(op, OperationErrorTransportFailed, res.StatusCode, "", err)
	}
	if res.IsError() {
		x.logger.Error().Int("status", res.StatusCode).Str("op", op).Msg("index returned an error")
		return empty, opErr(op, OperationErrorQueryFailed, res.StatusCode, errorReason(raw), nil)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return empty, opErr(op, OperationErrorDecodeFailed, res.StatusCode, "", err)
	}
	out := Result{
		Hits:  make([]json.RawMessage, 0, len(parsed.Hits.Hits)),
		Total: int64(parsed.Hits.Total),
	}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, sourceOrEmpty(h.Source))
	}
	return out, nil
}

// totalHits accepts both the numeric total of Elasticsearch 6 and the
// {"value":n,"relation":"eq"} object of later versions.
type totalHits int64

func (t *totalHits) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*t = totalHits(n)
		return nil
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	*t = totalHits(obj.Value)
	return nil
}

func sourceOrEmpty(src json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(src)) == 0 || string(src) == "null" {
		return json.RawMessage("{}")
	}
	return src
}

// errorReason pulls error.reason out of an error body, falling back to the
// raw text.
func errorReason(raw []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Error) > 0 {
		var detail struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(body.Error, &detail); err == nil && detail.Reason != "" {
			return detail.Type + ": " + detail.Reason
		}
		var msg string
		if err := json.Unmarshal(body.Error, &msg); err == nil {
			return msg
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}

// transportErr tells a timed out call apart from a cluster that could not be
// reached.
func transportErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, 0, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, 0, "", err)
	}
	return opErr(op, OperationErrorTransportFailed, 0, "", err)
}
