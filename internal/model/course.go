package model

import "time"

// Course represents a course in the catalog. CreatedAt is always derived
// from ID and never written independently.
type Course struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	CourseName  string    `db:"course_name" json:"course_name"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Archive     bool      `db:"archive" json:"archive"`
	Topics      StringSet `db:"topics" json:"topics"`
	Members     StringSet `db:"members" json:"members"`
}
