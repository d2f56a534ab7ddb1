package domain

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MinKeywordLength = 2
	// upstream rejects longer keywords
	MaxKeywordLength = 255
)

// SearchQuery is immutable; build it with NewSearchQuery.
type SearchQuery struct {
	keyword string
	filters map[string]string
}

func NewSearchQuery(keyword string, filters map[string]string) (SearchQuery, error) {
	keyword = strings.TrimSpace(keyword)
	if err := validateKeyword(keyword); err != nil {
		return SearchQuery{}, NewValidationError(err)
	}

	var copied map[string]string
	if len(filters) > 0 {
		copied = make(map[string]string, len(filters))
		for k, v := range filters {
			k = strings.TrimSpace(k)
			if k == "" {
				return SearchQuery{}, NewValidationError(fmt.Errorf("%w: empty key", ErrInvalidFilter))
			}
			copied[k] = strings.TrimSpace(v)
		}
	}

	return SearchQuery{keyword: keyword, filters: copied}, nil
}

func validateKeyword(keyword string) error {
	n := utf8.RuneCountInString(keyword)
	switch {
	case n == 0:
		return ErrEmptyKeyword
	case n < MinKeywordLength:
		return fmt.Errorf("%w: %d < %d characters", ErrKeywordTooShort, n, MinKeywordLength)
	case n > MaxKeywordLength:
		return fmt.Errorf("%w: %d > %d characters", ErrKeywordTooLong, n, MaxKeywordLength)
	}
	return nil
}

// Validate re-checks the keyword, which catches zero-value queries that
// skipped NewSearchQuery.
func (q SearchQuery) Validate() error {
	if err := validateKeyword(q.keyword); err != nil {
		return NewValidationError(err)
	}
	return nil
}

func (q SearchQuery) Keyword() string {
	return q.keyword
}

func (q SearchQuery) Filter(key string) (string, bool) {
	v, ok := q.filters[key]
	return v, ok
}

// Filters returns a copy.
func (q SearchQuery) Filters() map[string]string {
	out := make(map[string]string, len(q.filters))
	for k, v := range q.filters {
		out[k] = v
	}
	return out
}

// NormalizedKeyword is the keyword as used for fingerprinting: NFKC,
// lower-cased, whitespace collapsed.
func (q SearchQuery) NormalizedKeyword() string {
	k := norm.NFKC.String(q.keyword)
	k = strings.ToLower(k)
	return strings.Join(strings.Fields(k), " ")
}

// Fingerprint is the cache key for the query. Filter order does not matter.
func (q SearchQuery) Fingerprint() string {
	keys := make([]string, 0, len(q.filters))
	for k := range q.filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(q.NormalizedKeyword())
	for _, k := range keys {
		sb.WriteByte('\x00')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(q.filters[k])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("search:%x", hash[:16])
}

func (q SearchQuery) String() string {
	if len(q.filters) == 0 {
		return q.keyword
	}
	keys := make([]string, 0, len(q.filters))
	for k := range q.filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+q.filters[k])
	}
	return q.keyword + " [" + strings.Join(parts, " ") + "]"
}
