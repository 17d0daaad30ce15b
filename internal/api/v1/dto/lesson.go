package dto

import (
	"time"

	"lms/internal/model"
	"lms/internal/paging"
)

// LessonCreateDTO is used for incoming lesson creation requests
type LessonCreateDTO struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"max=100000"`
}

// LessonResponseDTO is returned in API responses for lessons
type LessonResponseDTO struct {
	LessonID  string    `json:"lesson_id"`
	CourseID  string    `json:"course_id"`
	TeacherID string    `json:"teacher_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewLessonResponse(l model.Lesson) LessonResponseDTO {
	return LessonResponseDTO{
		LessonID:  l.ID,
		CourseID:  l.CourseID,
		TeacherID: l.TeacherID,
		Title:     l.Title,
		Content:   l.Content,
		CreatedAt: l.CreatedAt,
	}
}

// LessonListResponseDTO is one page of lessons, newest first
type LessonListResponseDTO struct {
	Lessons    []LessonResponseDTO `json:"lessons"`
	Total      int64               `json:"total"`
	Pagination paging.Controls     `json:"pagination"`
}

func NewLessonListResponse(lessons []model.Lesson, total int64, page int) LessonListResponseDTO {
	out := make([]LessonResponseDTO, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, NewLessonResponse(l))
	}
	return LessonListResponseDTO{Lessons: out, Total: total, Pagination: paging.NewControls(page, total)}
}
