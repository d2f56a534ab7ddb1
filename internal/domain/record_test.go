package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Accessors(t *testing.T) {
	r := Record{
		"id":                        "a0WJ200000CDIHaMAP",
		"title":                     "IT導入補助金",
		"subsidy_max_limit":         "4500000",
		"target_number":             float64(20),
		"acceptance_end_datetime":   "2025-03-31T08:00:00Z",
		"acceptance_start_datetime": "2025-01-10",
		"nothing":                   nil,
	}

	assert.Equal(t, "a0WJ200000CDIHaMAP", r.ID())
	assert.Equal(t, "IT導入補助金", r.Title())
	assert.Equal(t, "20", r.String("target_number"))
	assert.Equal(t, "", r.String("nothing"))
	assert.Equal(t, "", r.String("missing"))

	f, ok := r.Float("subsidy_max_limit")
	require.True(t, ok)
	assert.Equal(t, 4500000.0, f)

	_, ok = r.Float("title")
	assert.False(t, ok)

	end, ok := r.Time("acceptance_end_datetime")
	require.True(t, ok)
	assert.True(t, end.Equal(time.Date(2025, 3, 31, 8, 0, 0, 0, time.UTC)))

	start, ok := r.Time("acceptance_start_datetime")
	require.True(t, ok)
	assert.Equal(t, 10, start.Day())

	_, ok = r.Time("title")
	assert.False(t, ok)
}

func TestRecord_TitleFallsBackToName(t *testing.T) {
	assert.Equal(t, "ものづくり補助金", Record{"name": "ものづくり補助金"}.Title())
}

func TestSearchResult_Copy(t *testing.T) {
	orig := &SearchResult{Records: []Record{{"id": "1"}}, TotalCount: 1}
	cp := orig.Copy()
	cp.FromCache = true
	cp.Records = append(cp.Records, Record{"id": "2"})

	assert.False(t, orig.FromCache)
	assert.Len(t, orig.Records, 1)

	var nilResult *SearchResult
	assert.Nil(t, nilResult.Copy())
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Now()
	e := CacheEntry{InsertedAt: now.Add(-time.Hour)}

	assert.False(t, e.Expired(now, 2*time.Hour))
	assert.False(t, e.Expired(now, time.Hour))
	assert.True(t, e.Expired(now, 59*time.Minute))
}
