package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one upstream object. The schema belongs to the upstream, so
// accessors are best effort and only used for display.
type Record map[string]any

type SearchResult struct {
	Records    []Record
	TotalCount int

	// call metadata for debug output
	Attempts  int
	FromCache bool
}

func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Float reads numbers that the upstream sends either as JSON numbers or as
// numeric strings.
func (r Record) Float(key string) (float64, bool) {
	switch t := r[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (r Record) Time(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (r Record) ID() string {
	return r.String("id")
}

func (r Record) Title() string {
	if t := r.String("title"); t != "" {
		return t
	}
	return r.String("name")
}

// Copy returns a shallow copy of the result with its own record slice.
func (s *SearchResult) Copy() *SearchResult {
	if s == nil {
		return nil
	}
	out := *s
	out.Records = make([]Record, len(s.Records))
	copy(out.Records, s.Records)
	return &out
}

// CacheEntry is what the search service stores per fingerprint.
type CacheEntry struct {
	Fingerprint string
	Result      *SearchResult
	InsertedAt  time.Time
}

// Expired reports whether the entry is older than ttl at now.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.InsertedAt) > ttl
}
