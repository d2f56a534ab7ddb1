// Package stats computes the overview shown by the stats command from one
// page of search results.
package stats

import (
	"sort"
	"time"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
)

const (
	DeadlineField = "acceptance_end_datetime"
	AmountField   = "subsidy_max_limit"

	UrgentWithin = 14 * 24 * time.Hour
)

type DeadlineBuckets struct {
	ThisMonth      int `json:"this_month"`
	NextMonth      int `json:"next_month"`
	AfterNextMonth int `json:"after_next_month"`
}

type AmountBuckets struct {
	Under1M   int `json:"under_1m"`
	Under10M  int `json:"under_10m"`
	Under100M int `json:"under_100m"`
	Over100M  int `json:"over_100m"`
}

type Urgent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	DaysLeft int       `json:"days_left"`
}

type Overview struct {
	TotalCount int             `json:"total_count"`
	Analyzed   int             `json:"analyzed"`
	ByDeadline DeadlineBuckets `json:"by_deadline"`
	ByAmount   AmountBuckets   `json:"by_amount"`
	Urgent     []Urgent        `json:"urgent"`
}

// Compute buckets records relative to now. Records whose deadline already
// passed or is missing are left out of the deadline buckets; records
// without an amount are left out of the amount buckets.
func Compute(res *domain.SearchResult, now time.Time) Overview {
	var ov Overview
	if res == nil {
		return ov
	}
	ov.TotalCount = res.TotalCount
	ov.Analyzed = len(res.Records)

	thisMonth := monthIndex(now)
	for _, r := range res.Records {
		if deadline, ok := r.Time(DeadlineField); ok && !deadline.Before(now) {
			switch monthIndex(deadline.In(now.Location())) - thisMonth {
			case 0:
				ov.ByDeadline.ThisMonth++
			case 1:
				ov.ByDeadline.NextMonth++
			default:
				ov.ByDeadline.AfterNextMonth++
			}

			if left := deadline.Sub(now); left <= UrgentWithin {
				ov.Urgent = append(ov.Urgent, Urgent{
					ID:       r.ID(),
					Title:    r.Title(),
					Deadline: deadline,
					DaysLeft: int(left.Hours() / 24),
				})
			}
		}

		if amount, ok := r.Float(AmountField); ok {
			switch {
			case amount <= 1_000_000:
				ov.ByAmount.Under1M++
			case amount <= 10_000_000:
				ov.ByAmount.Under10M++
			case amount <= 100_000_000:
				ov.ByAmount.Under100M++
			default:
				ov.ByAmount.Over100M++
			}
		}
	}

	sort.SliceStable(ov.Urgent, func(i, j int) bool {
		return ov.Urgent[i].Deadline.Before(ov.Urgent[j].Deadline)
	})
	return ov
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}
