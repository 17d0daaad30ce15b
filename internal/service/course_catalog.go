package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lms/internal/idclock"
	"lms/internal/model"
	"lms/internal/paging"
	"lms/internal/pubsub"
	"lms/internal/repository"
	"lms/internal/search"

	"github.com/rs/zerolog"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
)

// maxCreateAttempts bounds how many fresh ids a create tries when the
// conditional insert reports a collision.
const maxCreateAttempts = 3

// CoursePage is one page of courses plus the total number of matches.
type CoursePage struct {
	Courses []model.Course `json:"courses"`
	Total   int64          `json:"total"`
}

// LessonPage is one page of lessons, newest first.
type LessonPage struct {
	Lessons []model.Lesson `json:"lessons"`
	Total   int64          `json:"total"`
}

// MemberPage is one page of a course's member ids, sorted.
type MemberPage struct {
	Members []string `json:"members"`
	Total   int64    `json:"total"`
}

// CourseCatalog is the entry point for reading and writing courses and
// lessons.
//
// Writes go to the primary store and are durable once they return. Listings
// and searches read the search index, which an external pipeline fills from
// the store, so they may lag a write by up to the configured staleness
// bound. GetCourse falls back to the store and therefore sees a course as
// soon as its write returns.
//
// Paginated reads never return a nil page: on failure they return an empty
// page with total 0 together with the error.
type CourseCatalog interface {
	UpsertCourse(ctx context.Context, c model.Course, opts ...UpsertOption) error
	CreateCourse(ctx context.Context, c model.Course) (model.Course, error)
	FindCoursesByStudent(ctx context.Context, studentID string, page int, proj search.Projection) (CoursePage, error)
	FindCoursesByTeacher(ctx context.Context, teacherID string, page int, proj search.Projection) (CoursePage, error)
	GetCourse(ctx context.Context, teacherID, courseID string, proj search.Projection) (model.Course, error)
	SearchCourses(ctx context.Context, q search.CourseQuery, page int, proj search.Projection) (CoursePage, error)
	ListMembers(ctx context.Context, teacherID, courseID string, page int) (MemberPage, error)

	UpsertLesson(ctx context.Context, l model.Lesson, opts ...UpsertOption) error
	CreateLesson(ctx context.Context, l model.Lesson) (model.Lesson, error)
	ListLessons(ctx context.Context, teacherID, courseID string, page int) (LessonPage, error)
	GetLesson(ctx context.Context, teacherID, courseID, lessonID string) (model.Lesson, error)
}

// UpsertOption adjusts a single upsert. Without options an upsert is an
// insert-only write of every field with no expiry.
type UpsertOption func(*repository.UpsertOptions)

// WithFields limits the write to the named fields.
func WithFields(fields ...string) UpsertOption {
	return func(o *repository.UpsertOptions) { o.Fields = fields }
}

// Replace overwrites an existing record instead of failing with
// repository.ErrAlreadyExists.
func Replace() UpsertOption {
	return func(o *repository.UpsertOptions) { o.InsertOnly = false }
}

// WithTTL expires the record after ttl.
func WithTTL(ttl time.Duration) UpsertOption {
	return func(o *repository.UpsertOptions) { o.TTL = ttl }
}

func upsertOptions(opts []UpsertOption) repository.UpsertOptions {
	o := repository.UpsertOptions{InsertOnly: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type courseCatalog struct {
	store    repository.RecordStore
	index    search.Index
	clock    idclock.Clock
	notifier pubsub.ChangeNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCourseCatalog creates a CourseCatalog over explicit store, index and
// clock handles. A nil notifier disables change events.
func NewCourseCatalog(
	store repository.RecordStore,
	index search.Index,
	clock idclock.Clock,
	notifier pubsub.ChangeNotifier,
	logger zerolog.Logger,
) CourseCatalog {
	if notifier == nil {
		notifier = pubsub.NopNotifier{}
	}
	return &courseCatalog{
		store:    store,
		index:    index,
		clock:    clock,
		notifier: notifier,
		logger:   logger.With().Str("service", "CourseCatalog").Logger(),
		now:      time.Now,
	}
}

// UpsertCourse writes c to the store. created_at is taken from c.ID, so an
// id the clock cannot decode fails with idclock.ErrInvalidFormat.
func (s *courseCatalog) UpsertCourse(ctx context.Context, c model.Course, opts ...UpsertOption) error {
	o := upsertOptions(opts)
	c.ID = idclock.Canonical(c.ID)
	c.TeacherID = idclock.Canonical(c.TeacherID)
	createdAt, err := s.clock.Time(c.ID)
	if err != nil {
		return fmt.Errorf("course %q: %w", c.ID, err)
	}
	if err := idclock.Validate(c.TeacherID); err != nil {
		return fmt.Errorf("course %s teacher: %w", c.ID, err)
	}
	row := repository.Row{
		"id":          c.ID,
		"teacher_id":  c.TeacherID,
		"description": nullable(c.Description),
		"course_name": c.CourseName,
		"created_at":  createdAt,
		"topics":      []string(c.Topics.Normalize()),
		"archive":     c.Archive,
		"members":     canonicalSet(c.Members),
	}
	if err := s.store.Upsert(ctx, repository.CourseTable, row, o); err != nil {
		if !errors.Is(err, repository.ErrAlreadyExists) {
			s.logger.Error().Err(err).Str("course_id", c.ID).Msg("failed to upsert course")
		}
		return err
	}
	s.notify(ctx, repository.CourseTable, row, o)
	return nil
}

func (s *courseCatalog) CreateCourse(ctx context.Context, c model.Course) (model.Course, error) {
	id, err := s.createWithFreshID(ctx, "course", func(id string) error {
		c.ID = id
		return s.UpsertCourse(ctx, c)
	})
	if err != nil {
		return model.Course{}, err
	}
	c.ID = id
	c.TeacherID = idclock.Canonical(c.TeacherID)
	c.CreatedAt, _ = s.clock.Time(id)
	c.Topics = c.Topics.Normalize()
	c.Members = canonicalSet(c.Members)
	return c, nil
}

func (s *courseCatalog) FindCoursesByStudent(ctx context.Context, studentID string, page int, proj search.Projection) (CoursePage, error) {
	res, err := s.index.SearchByMember(ctx, idclock.Canonical(studentID), paging.Normalize(page), proj)
	return s.coursePage("find_courses_by_student", res, err)
}

func (s *courseCatalog) FindCoursesByTeacher(ctx context.Context, teacherID string, page int, proj search.Projection) (CoursePage, error) {
	res, err := s.index.SearchByOwner(ctx, idclock.Canonical(teacherID), paging.Normalize(page), proj)
	return s.coursePage("find_courses_by_teacher", res, err)
}

func (s *courseCatalog) SearchCourses(ctx context.Context, q search.CourseQuery, page int, proj search.Projection) (CoursePage, error) {
	res, err := s.index.SearchCourses(ctx, q, paging.Normalize(page), proj)
	return s.coursePage("search_courses", res, err)
}

// GetCourse looks the course up in the index and falls back to the store
// when the index has no copy yet or cannot be reached.
func (s *courseCatalog) GetCourse(ctx context.Context, teacherID, courseID string, proj search.Projection) (model.Course, error) {
	teacherID = idclock.Canonical(teacherID)
	courseID = idclock.Canonical(courseID)
	// Key columns are UUIDs; anything else cannot name a stored course.
	if err := idclock.Validate(teacherID, courseID); err != nil {
		return model.Course{}, fmt.Errorf("course %s/%s: %w", teacherID, courseID, ErrCourseNotFound)
	}

	doc, indexErr := s.index.GetByKey(ctx, teacherID, courseID, proj)
	if indexErr == nil {
		return s.decodeCourse(doc)
	}
	switch {
	case ctx.Err() != nil:
		return model.Course{}, indexErr
	case errors.Is(indexErr, search.ErrNotFound):
	case errors.Is(indexErr, search.ErrUnavailable):
		s.logger.Warn().Err(indexErr).Str("course_id", courseID).Msg("index lookup failed, reading from store")
	default:
		return model.Course{}, indexErr
	}

	key := repository.Row{"teacher_id": teacherID, "id": courseID}
	row, err := s.store.Get(ctx, repository.CourseTable, key, storeFields(repository.CourseTable, proj))
	if errors.Is(err, repository.ErrNotFound) {
		return model.Course{}, fmt.Errorf("course %s/%s: %w", teacherID, courseID, ErrCourseNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("course_id", courseID).Msg("failed to read course from store")
		if errors.Is(indexErr, search.ErrUnavailable) {
			return model.Course{}, fmt.Errorf("get course: %w; store fallback: %w", indexErr, err)
		}
		return model.Course{}, err
	}
	return s.courseFromRow(row), nil
}

func (s *courseCatalog) ListMembers(ctx context.Context, teacherID, courseID string, page int) (MemberPage, error) {
	c, err := s.GetCourse(ctx, teacherID, courseID, search.Projection{Includes: []string{"members"}})
	if err != nil {
		return MemberPage{Members: []string{}}, err
	}
	members := c.Members.Normalize()
	total := len(members)
	from := paging.Offset(page)
	if from >= total {
		return MemberPage{Members: []string{}, Total: int64(total)}, nil
	}
	to := min(from+paging.PageSize, total)
	return MemberPage{Members: members[from:to], Total: int64(total)}, nil
}

func (s *courseCatalog) coursePage(op string, res search.Result, err error) (CoursePage, error) {
	if err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("index query failed")
		return CoursePage{Courses: []model.Course{}}, fmt.Errorf("%s: %w", op, err)
	}
	courses := make([]model.Course, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c, err := s.decodeCourse(hit)
		if err != nil {
			s.logger.Warn().Err(err).Str("op", op).Msg("skipping undecodable course document")
			continue
		}
		courses = append(courses, c)
	}
	return CoursePage{Courses: courses, Total: res.Total}, nil
}

// courseDoc shadows created_at so whatever format the index stores it in
// is ignored; the value is rebuilt from the id.
type courseDoc struct {
	model.Course
	CreatedAt json.RawMessage `json:"created_at"`
}

func (s *courseCatalog) decodeCourse(raw json.RawMessage) (model.Course, error) {
	var doc courseDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Course{}, fmt.Errorf("decode course document: %w", err)
	}
	c := doc.Course
	c.CreatedAt = s.createdAt(c.ID)
	return c, nil
}

func (s *courseCatalog) courseFromRow(row repository.Row) model.Course {
	c := model.Course{
		ID:          str(row["id"]),
		TeacherID:   str(row["teacher_id"]),
		CourseName:  str(row["course_name"]),
		Description: str(row["description"]),
		Topics:      strs(row["topics"]),
		Members:     strs(row["members"]),
	}
	if archive, ok := row["archive"].(bool); ok {
		c.Archive = archive
	}
	c.CreatedAt = s.createdAt(c.ID)
	return c
}

func (s *courseCatalog) createdAt(id string) time.Time {
	if id == "" {
		return time.Time{}
	}
	t, err := s.clock.Time(id)
	if err != nil {
		return time.Time{}
	}
	return t
}

// createWithFreshID calls write with newly issued ids until one is not
// already taken.
func (s *courseCatalog) createWithFreshID(ctx context.Context, entity string, write func(id string) error) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := s.clock.NewID()
		if err != nil {
			return "", err
		}
		err = write(id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return "", err
		}
		lastErr = err
		s.logger.Warn().Str("entity", entity).Str("id", id).Int("attempt", attempt).Msg("id collision, retrying with a new id")
	}
	return "", fmt.Errorf("create %s after %d attempts: %w", entity, maxCreateAttempts, lastErr)
}

// notify publishes a change event. The write is already durable, so a
// failure here is logged and not returned.
func (s *courseCatalog) notify(ctx context.Context, table repository.Table, row repository.Row, o repository.UpsertOptions) {
	key := make(map[string]string, len(table.Key))
	for _, k := range table.Key {
		key[k] = str(row[k])
	}
	ev := pubsub.ChangeEvent{
		Table:      table.Name,
		Key:        key,
		Fields:     o.Fields,
		InsertOnly: o.InsertOnly,
		TTLSeconds: int((o.TTL + time.Second - 1) / time.Second),
		WrittenAt:  s.now().UTC(),
	}
	if err := s.notifier.NotifyChange(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("table", table.Name).Msg("failed to publish change event")
	}
}

// storeFields translates an index projection into a store column list.
// Unknown names are ignored, as the index ignores them.
func storeFields(table repository.Table, proj search.Projection) []string {
	if len(proj.Includes) == 0 && len(proj.Excludes) == 0 {
		return nil
	}
	candidates := proj.Includes
	if len(candidates) == 0 {
		candidates = table.Columns
	}
	excluded := make(map[string]bool, len(proj.Excludes))
	for _, e := range proj.Excludes {
		excluded[e] = true
	}
	fields := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if excluded[c] {
			continue
		}
		for _, col := range table.Columns {
			if col == c {
				fields = append(fields, c)
				break
			}
		}
	}
	if len(fields) == 0 {
		return table.Key
	}
	return fields
}

func canonicalSet(set model.StringSet) []string {
	out := make(model.StringSet, 0, len(set))
	for _, v := range set {
		out = append(out, idclock.Canonical(v))
	}
	return out.Normalize()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) model.StringSet {
	switch x := v.(type) {
	case []string:
		return model.StringSet(x)
	case []any:
		out := make(model.StringSet, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return model.StringSet{}
}
