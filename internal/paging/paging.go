// Package paging holds the fixed-size page arithmetic shared by the index
// adapter, the catalog and the HTTP handlers.
package paging

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// PageSize is the number of records on every page.
const PageSize = 10

// MaxPage bounds page numbers so that Offset never overflows.
const MaxPage = math.MaxInt32 / PageSize

// Normalize clamps page into [1, MaxPage].
func Normalize(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// Parse turns a raw query value into a page number. Decimals truncate toward
// zero and anything unparsable becomes page 1.
func Parse(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return Normalize(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 1 {
		return 1
	}
	if f >= float64(MaxPage) {
		return MaxPage
	}
	return Normalize(int(f))
}

// Offset returns the index of the first record on page.
func Offset(page int) int {
	return PageSize * (Normalize(page) - 1)
}

// TotalPages returns ceil(total / PageSize).
func TotalPages(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// Controls describes the previous/next controls a listing renders.
type Controls struct {
	Page         int   `json:"page"`
	TotalPages   int64 `json:"total_pages"`
	Show         bool  `json:"show"`
	PrevDisabled bool  `json:"prev_disabled"`
	NextDisabled bool  `json:"next_disabled"`
}

// NewControls computes the controls for page out of total records.
func NewControls(page int, total int64) Controls {
	pages := TotalPages(total)
	return Controls{
		Page:         page,
		TotalPages:   pages,
		Show:         total > 0,
		PrevDisabled: page <= 1,
		NextDisabled: int64(page) >= pages,
	}
}

// ParseTopics decodes a JSON array of topic names. Malformed input and
// non-array JSON yield an empty list; non-string entries are dropped.
func ParseTopics(raw string) []string {
	topics := []string{}
	if strings.TrimSpace(raw) == "" {
		return topics
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return topics
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			topics = append(topics, s)
		}
	}
	return topics
}
