package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lms/internal/idclock"
	"lms/internal/model"
	"lms/internal/paging"
	"lms/internal/repository"
	"lms/internal/search"
)

// UpsertLesson writes l to the store under its (course, teacher) partition.
func (s *courseCatalog) UpsertLesson(ctx context.Context, l model.Lesson, opts ...UpsertOption) error {
	o := upsertOptions(opts)
	l.ID = idclock.Canonical(l.ID)
	l.CourseID = idclock.Canonical(l.CourseID)
	l.TeacherID = idclock.Canonical(l.TeacherID)
	createdAt, err := s.clock.Time(l.ID)
	if err != nil {
		return fmt.Errorf("lesson %q: %w", l.ID, err)
	}
	if err := idclock.Validate(l.CourseID, l.TeacherID); err != nil {
		return fmt.Errorf("lesson %s partition: %w", l.ID, err)
	}
	tick, err := s.clock.Ticks(l.ID)
	if err != nil {
		return fmt.Errorf("lesson %q: %w", l.ID, err)
	}
	row := repository.Row{
		"course_id":    l.CourseID,
		"teacher_id":   l.TeacherID,
		"id":           l.ID,
		"title":        l.Title,
		"content":      l.Content,
		"created_at":   createdAt,
		"created_tick": tick,
	}
	if err := s.store.Upsert(ctx, repository.LessonTable, row, o); err != nil {
		if !errors.Is(err, repository.ErrAlreadyExists) {
			s.logger.Error().Err(err).Str("lesson_id", l.ID).Msg("failed to upsert lesson")
		}
		return err
	}
	s.notify(ctx, repository.LessonTable, row, o)
	return nil
}

// CreateLesson adds a lesson to an existing course owned by l.TeacherID.
func (s *courseCatalog) CreateLesson(ctx context.Context, l model.Lesson) (model.Lesson, error) {
	if _, err := s.GetCourse(ctx, l.TeacherID, l.CourseID, search.Projection{Includes: []string{"id"}}); err != nil {
		return model.Lesson{}, err
	}
	id, err := s.createWithFreshID(ctx, "lesson", func(id string) error {
		l.ID = id
		return s.UpsertLesson(ctx, l)
	})
	if err != nil {
		return model.Lesson{}, err
	}
	l.ID = id
	l.CourseID = idclock.Canonical(l.CourseID)
	l.TeacherID = idclock.Canonical(l.TeacherID)
	l.CreatedAt, _ = s.clock.Time(id)
	return l, nil
}

func (s *courseCatalog) ListLessons(ctx context.Context, teacherID, courseID string, page int) (LessonPage, error) {
	const op = "list_lessons"
	res, err := s.index.ListLessons(ctx, idclock.Canonical(teacherID), idclock.Canonical(courseID), paging.Normalize(page), search.Projection{})
	if err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("index query failed")
		return LessonPage{Lessons: []model.Lesson{}}, fmt.Errorf("%s: %w", op, err)
	}
	lessons := make([]model.Lesson, 0, len(res.Hits))
	for _, hit := range res.Hits {
		l, err := s.decodeLesson(hit)
		if err != nil {
			s.logger.Warn().Err(err).Str("op", op).Msg("skipping undecodable lesson document")
			continue
		}
		lessons = append(lessons, l)
	}
	return LessonPage{Lessons: lessons, Total: res.Total}, nil
}

// GetLesson reads a lesson from the store, so it is visible as soon as its
// write returns.
func (s *courseCatalog) GetLesson(ctx context.Context, teacherID, courseID, lessonID string) (model.Lesson, error) {
	key := repository.Row{
		"course_id":  idclock.Canonical(courseID),
		"teacher_id": idclock.Canonical(teacherID),
		"id":         idclock.Canonical(lessonID),
	}
	if err := idclock.Validate(str(key["course_id"]), str(key["teacher_id"]), str(key["id"])); err != nil {
		return model.Lesson{}, fmt.Errorf("lesson %s: %w", key["id"], ErrLessonNotFound)
	}
	row, err := s.store.Get(ctx, repository.LessonTable, key, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Lesson{}, fmt.Errorf("lesson %s: %w", key["id"], ErrLessonNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("lesson_id", str(key["id"])).Msg("failed to read lesson")
		return model.Lesson{}, err
	}
	l := model.Lesson{
		ID:        str(row["id"]),
		CourseID:  str(row["course_id"]),
		TeacherID: str(row["teacher_id"]),
		Title:     str(row["title"]),
		Content:   str(row["content"]),
	}
	l.CreatedAt = s.createdAt(l.ID)
	return l, nil
}

type lessonDoc struct {
	model.Lesson
	CreatedAt json.RawMessage `json:"created_at"`
}

func (s *courseCatalog) decodeLesson(raw json.RawMessage) (model.Lesson, error) {
	var doc lessonDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Lesson{}, fmt.Errorf("decode lesson document: %w", err)
	}
	l := doc.Lesson
	l.CreatedAt = s.createdAt(l.ID)
	return l, nil
}
