// Package search queries the secondary document index that mirrors the
// primary store.
//
// The index is eventually consistent with the store: documents appear once
// the external indexing pipeline has copied the row, so a read that follows
// a write may not see it yet.
package search

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrUnavailable wraps transport failures and non-2xx index responses.
	ErrUnavailable = errors.New("search index unavailable")
	// ErrNotFound is returned by GetByKey when no document has the key.
	ErrNotFound = errors.New("document not found")
)

// Projection filters the fields returned for each document. When both lists
// are set the index decides how they combine.
type Projection struct {
	Includes []string
	Excludes []string
}

// Result is one page of matching documents.
type Result struct {
	// Hits holds the raw _source of each document, in index order.
	Hits []json.RawMessage
	// Total is the number of matching documents across all pages.
	Total int64
}

// CourseQuery is a free text and topic search over courses.
type CourseQuery struct {
	Text   string
	Topics []string
}

// Index answers filtered, paginated queries. Pages are 1-based and hold
// paging.PageSize documents; page numbers below 1 are treated as 1.
type Index interface {
	// SearchByMember returns courses whose members contain studentID.
	SearchByMember(ctx context.Context, studentID string, page int, proj Projection) (Result, error)
	// SearchByOwner returns courses owned by teacherID.
	SearchByOwner(ctx context.Context, teacherID string, page int, proj Projection) (Result, error)
	// GetByKey returns the course document with id DocumentID(teacherID, courseID).
	GetByKey(ctx context.Context, teacherID, courseID string, proj Projection) (json.RawMessage, error)
	// SearchCourses matches course name and description against q.Text and
	// requires every topic in q.Topics. Archived courses are left out.
	SearchCourses(ctx context.Context, q CourseQuery, page int, proj Projection) (Result, error)
	// ListLessons returns the lessons of a course, newest first.
	ListLessons(ctx context.Context, teacherID, courseID string, page int, proj Projection) (Result, error)
}
