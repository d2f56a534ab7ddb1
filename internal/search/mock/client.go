package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/search"
)

// Upstream is a scripted search.Upstream for tests.
type Upstream struct {
	Records []domain.Record
	Error   error
	Delay   time.Duration

	CallCount     int
	LastQuery     domain.SearchQuery
	AllQueries    []domain.SearchQuery
	LastRequestID string

	mu sync.Mutex
}

func New() *Upstream {
	return &Upstream{}
}

func (u *Upstream) WithRecords(records []domain.Record) *Upstream {
	u.Records = records
	return u
}

func (u *Upstream) WithError(err error) *Upstream {
	u.Error = err
	return u
}

func (u *Upstream) WithDelay(delay time.Duration) *Upstream {
	u.Delay = delay
	return u
}

func (u *Upstream) Fetch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	u.mu.Lock()
	u.CallCount++
	u.LastQuery = query
	u.AllQueries = append(u.AllQueries, query)
	u.LastRequestID = search.RequestIDFrom(ctx)
	delay := u.Delay
	err := u.Error
	records := u.Records
	u.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, domain.NewTimeoutError(ctx.Err())
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	out := make([]domain.Record, len(records))
	copy(out, records)
	return &domain.SearchResult{
		Records:    out,
		TotalCount: len(out),
		Attempts:   1,
	}, nil
}

func (u *Upstream) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.CallCount
}

func (u *Upstream) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.CallCount = 0
	u.LastQuery = domain.SearchQuery{}
	u.AllQueries = nil
	u.LastRequestID = ""
}
