package search

import (
	"bytes"
	"encoding/json"
	"strings"
)

func memberQuery(studentID string) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"term": map[string]any{"members": studentID},
		},
	}
}

func ownerQuery(teacherID string) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"term": map[string]any{"teacher_id": teacherID}},
				},
			},
		},
	}
}

func courseSearchQuery(q CourseQuery) map[string]any {
	must := []any{}
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"course_name^2", "description"},
			},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}
	filter := []any{}
	for _, topic := range q.Topics {
		filter = append(filter, map[string]any{"term": map[string]any{"topics": topic}})
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":     must,
				"filter":   filter,
				"must_not": []any{map[string]any{"term": map[string]any{"archive": true}}},
			},
		},
	}
}

func lessonQuery(teacherID, courseID string) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"course_id": courseID}},
					map[string]any{"term": map[string]any{"teacher_id": teacherID}},
				},
			},
		},
		// created_at only has millisecond resolution; created_tick orders
		// lessons minted in the same millisecond and id settles exact ties.
		"sort": []any{
			map[string]any{"created_at": map[string]any{"order": "desc"}},
			map[string]any{"created_tick": map[string]any{"order": "desc"}},
			map[string]any{"id": map[string]any{"order": "desc"}},
		},
	}
}

// DocumentID returns the index id of a course: the JSON array
// ["teacherID","courseID"], without HTML escaping.
func DocumentID(teacherID, courseID string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string{teacherID, courseID}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
