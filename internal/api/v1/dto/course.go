package dto

import (
	"time"

	"lms/internal/model"
	"lms/internal/paging"
)

// CourseCreateDTO is used for incoming course creation requests
type CourseCreateDTO struct {
	CourseName  string   `json:"course_name" validate:"required,max=200"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Topics      []string `json:"topics,omitempty" validate:"omitempty,max=50,dive,required,max=64"`
	Members     []string `json:"members,omitempty" validate:"omitempty,dive,uuid"`
	Archive     *bool    `json:"archive,omitempty"`
}

// Course builds the model owned by teacherID. The id is issued on create.
func (d CourseCreateDTO) Course(teacherID string) model.Course {
	c := model.Course{
		TeacherID:  teacherID,
		CourseName: d.CourseName,
		Topics:     model.StringSet(d.Topics),
		Members:    model.StringSet(d.Members),
	}
	if d.Description != nil {
		c.Description = *d.Description
	}
	if d.Archive != nil {
		c.Archive = *d.Archive
	}
	return c
}

// CourseUpdateDTO is used for PUT on an explicit course id. Only the fields
// present in the body are written unless Fields names them explicitly.
type CourseUpdateDTO struct {
	CourseName  *string  `json:"course_name,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Topics      []string `json:"topics,omitempty" validate:"omitempty,max=50,dive,required,max=64"`
	Members     []string `json:"members,omitempty" validate:"omitempty,dive,uuid"`
	Archive     *bool    `json:"archive,omitempty"`

	Fields      []string `json:"fields,omitempty" validate:"omitempty,dive,oneof=course_name description archive topics members"`
	TTLSeconds  int      `json:"ttl_seconds,omitempty" validate:"gte=0"`
	IfNotExists bool     `json:"if_not_exists,omitempty"`
}

// Course builds the model for courseID owned by teacherID.
func (d CourseUpdateDTO) Course(teacherID, courseID string) model.Course {
	c := model.Course{
		ID:        courseID,
		TeacherID: teacherID,
		Topics:    model.StringSet(d.Topics),
		Members:   model.StringSet(d.Members),
	}
	if d.CourseName != nil {
		c.CourseName = *d.CourseName
	}
	if d.Description != nil {
		c.Description = *d.Description
	}
	if d.Archive != nil {
		c.Archive = *d.Archive
	}
	return c
}

// WrittenFields returns the columns the update touches. An empty result
// means nothing to write.
func (d CourseUpdateDTO) WrittenFields() []string {
	if len(d.Fields) > 0 {
		return d.Fields
	}
	var fields []string
	if d.CourseName != nil {
		fields = append(fields, "course_name")
	}
	if d.Description != nil {
		fields = append(fields, "description")
	}
	if d.Archive != nil {
		fields = append(fields, "archive")
	}
	if d.Topics != nil {
		fields = append(fields, "topics")
	}
	if d.Members != nil {
		fields = append(fields, "members")
	}
	return fields
}

// TTL returns the requested expiry, zero for none.
func (d CourseUpdateDTO) TTL() time.Duration {
	return time.Duration(d.TTLSeconds) * time.Second
}

// CourseResponseDTO is returned in API responses for courses
type CourseResponseDTO struct {
	CourseID    string    `json:"course_id"`
	TeacherID   string    `json:"teacher_id"`
	CourseName  string    `json:"course_name"`
	Description string    `json:"description"`
	Archive     bool      `json:"archive"`
	Topics      []string  `json:"topics"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewCourseResponse(c model.Course) CourseResponseDTO {
	return CourseResponseDTO{
		CourseID:    c.ID,
		TeacherID:   c.TeacherID,
		CourseName:  c.CourseName,
		Description: c.Description,
		Archive:     c.Archive,
		Topics:      c.Topics.Normalize(),
		Members:     c.Members.Normalize(),
		CreatedAt:   c.CreatedAt,
	}
}

// CourseListResponseDTO is one page of courses with pagination controls
type CourseListResponseDTO struct {
	Courses    []CourseResponseDTO `json:"courses"`
	Total      int64               `json:"total"`
	Pagination paging.Controls     `json:"pagination"`
}

func NewCourseListResponse(courses []model.Course, total int64, page int) CourseListResponseDTO {
	out := make([]CourseResponseDTO, 0, len(courses))
	for _, c := range courses {
		out = append(out, NewCourseResponse(c))
	}
	return CourseListResponseDTO{Courses: out, Total: total, Pagination: paging.NewControls(page, total)}
}

// MemberListResponseDTO is one page of a course's member ids
type MemberListResponseDTO struct {
	Members    []string        `json:"members"`
	Total      int64           `json:"total"`
	Pagination paging.Controls `json:"pagination"`
}

// CourseWriteResponseDTO acknowledges a PUT. Index-backed listings may not
// reflect it until the staleness bound has passed.
type CourseWriteResponseDTO struct {
	CourseID  string   `json:"course_id"`
	TeacherID string   `json:"teacher_id"`
	Fields    []string `json:"fields"`
}
