package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/metrics"
)

func fastConfig(maxRetries int) Config {
	return Config{
		Timeout:        200 * time.Millisecond,
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}
}

func getBuilder(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func decodeRecords(body []byte) (*domain.SearchResult, error) {
	var resp struct {
		Result []map[string]any `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	res := &domain.SearchResult{}
	for _, r := range resp.Result {
		res.Records = append(res.Records, domain.Record(r))
	}
	res.TotalCount = len(res.Records)
	return res, nil
}

// countingServer answers with statuses[i] on the i-th request and repeats
// the last status afterwards.
func countingServer(t *testing.T, statuses []int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statuses[n])
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTransport_StatusHandling(t *testing.T) {
	okBody := `{"result":[{"id":"1"},{"id":"2"}]}`

	tests := []struct {
		name         string
		statuses     []int
		body         string
		maxRetries   int
		wantKind     domain.ErrorKind
		wantAttempts int
		wantRecords  int
	}{
		{"ok", []int{200}, okBody, 3, "", 1, 2},
		{"ok empty", []int{200}, `{"result":[]}`, 3, "", 1, 0},
		{"bad request no retry", []int{400}, `{"message":"keyword"}`, 3, domain.KindBadRequest, 1, 0},
		{"not found no retry", []int{404}, ``, 3, domain.KindBadRequest, 1, 0},
		{"server error exhausts budget", []int{500}, ``, 3, domain.KindServerError, 4, 0},
		{"server error zero budget", []int{503}, ``, 0, domain.KindServerError, 1, 0},
		{"recovers after 5xx", []int{502, 500, 200}, okBody, 3, "", 3, 2},
		{"parse failure", []int{200}, `<html>`, 3, domain.KindUnexpected, 1, 0},
		{"non-200 success", []int{204}, ``, 3, domain.KindUnexpected, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := countingServer(t, tt.statuses, tt.body)
			tr := NewTransport(fastConfig(tt.maxRetries), zap.NewNop(), nil)

			res, err := tr.Do(context.Background(), getBuilder(srv.URL), decodeRecords)

			if int(calls.Load()) != tt.wantAttempts {
				t.Errorf("server saw %d requests, want %d", calls.Load(), tt.wantAttempts)
			}

			if tt.wantKind != "" {
				var cerr *domain.ClientError
				if !errors.As(err, &cerr) {
					t.Fatalf("Do() error = %v, want *domain.ClientError", err)
				}
				if cerr.Kind != tt.wantKind {
					t.Errorf("Kind = %v, want %v (err %v)", cerr.Kind, tt.wantKind, err)
				}
				if cerr.Attempts != tt.wantAttempts {
					t.Errorf("Attempts = %d, want %d", cerr.Attempts, tt.wantAttempts)
				}
				return
			}

			if err != nil {
				t.Fatalf("Do() unexpected error = %v", err)
			}
			if len(res.Records) != tt.wantRecords {
				t.Errorf("records = %d, want %d", len(res.Records), tt.wantRecords)
			}
			if res.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", res.Attempts, tt.wantAttempts)
			}
		})
	}
}

func TestTransport_BadRequestKeepsStatusAndBody(t *testing.T) {
	srv, _ := countingServer(t, []int{http.StatusBadRequest}, `keyword is required`)
	tr := NewTransport(fastConfig(3), zap.NewNop(), nil)

	_, err := tr.Do(context.Background(), getBuilder(srv.URL), decodeRecords)

	var cerr *domain.ClientError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v", err)
	}
	if cerr.StatusCode != http.StatusBadRequest || cerr.Message != "keyword is required" {
		t.Errorf("got status %d message %q", cerr.StatusCode, cerr.Message)
	}
}

func TestTransport_TimeoutEveryAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := fastConfig(2)
	cfg.Timeout = 50 * time.Millisecond
	tr := NewTransport(cfg, zap.NewNop(), nil)

	start := time.Now()
	_, err := tr.Do(context.Background(), getBuilder(srv.URL), decodeRecords)

	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("Do() error = %v, want timeout", err)
	}
	var cerr *domain.ClientError
	errors.As(err, &cerr)
	if cerr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", cerr.Attempts)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Do() took %v, per-attempt timeout not applied", elapsed)
	}
}

func TestTransport_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewTransport(fastConfig(2), zap.NewNop(), nil)
	_, err := tr.Do(context.Background(), getBuilder(url), decodeRecords)

	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("Do() error = %v, want network error", err)
	}
	var cerr *domain.ClientError
	errors.As(err, &cerr)
	if cerr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", cerr.Attempts)
	}
}

func TestTransport_TLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"id":"1"}]}`))
	}))
	defer srv.Close()

	secure := NewTransport(fastConfig(0), zap.NewNop(), nil)
	_, err := secure.Do(context.Background(), getBuilder(srv.URL), decodeRecords)
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("self-signed cert accepted with verification on: err = %v", err)
	}

	cfg := fastConfig(0)
	cfg.InsecureSkipVerify = true
	insecure := NewTransport(cfg, zap.NewNop(), nil)
	res, err := insecure.Do(context.Background(), getBuilder(srv.URL), decodeRecords)
	if err != nil {
		t.Fatalf("InsecureSkipVerify: Do() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("records = %d, want 1", len(res.Records))
	}
}

func TestTransport_CallerCancelDuringBackoff(t *testing.T) {
	srv, calls := countingServer(t, []int{500}, ``)

	cfg := fastConfig(3)
	cfg.RetryBaseDelay = 10 * time.Second
	cfg.RetryMaxDelay = 10 * time.Second
	tr := NewTransport(cfg, zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.Do(ctx, getBuilder(srv.URL), decodeRecords)

	if !errors.Is(err, domain.ErrServerError) {
		t.Errorf("Do() error = %v, want last classified error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", calls.Load())
	}
	if time.Since(start) > 2*time.Second {
		t.Error("backoff wait ignored caller context")
	}
}

func TestTransport_RequestIDHeader(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	tr := NewTransport(fastConfig(0), zap.NewNop(), nil)
	ctx := WithRequestID(context.Background(), "req-42")
	if _, err := tr.Do(ctx, getBuilder(srv.URL), decodeRecords); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if id := <-got; id != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", id)
	}
}

func TestTransport_RateLimited(t *testing.T) {
	srv, calls := countingServer(t, []int{200}, `{"result":[]}`)

	cfg := fastConfig(0)
	cfg.RatePerSecond = 20
	tr := NewTransport(cfg, zap.NewNop(), nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := tr.Do(context.Background(), getBuilder(srv.URL), decodeRecords); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}
	// burst 1 at 20/s: the 2nd and 3rd call wait ~50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 calls took %v, limiter not applied", elapsed)
	}
}

func TestTransport_Metrics(t *testing.T) {
	srv, _ := countingServer(t, []int{500, 200}, `{"result":[]}`)
	m := metrics.New(nil)
	tr := NewTransport(fastConfig(3), zap.NewNop(), m)

	if _, err := tr.Do(context.Background(), getBuilder(srv.URL), decodeRecords); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if got := testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("server_error")); got != 1 {
		t.Errorf("attempts{server_error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("attempts{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("server_error")); got != 1 {
		t.Errorf("retries{server_error} = %v, want 1", got)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{MaxRetries: -1, RetryBaseDelay: time.Second, RetryMaxDelay: time.Millisecond}.withDefaults()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, DefaultCacheTTL)
	}
	if cfg.RetryMaxDelay != time.Second {
		t.Errorf("RetryMaxDelay = %v, want clamp to base delay", cfg.RetryMaxDelay)
	}

	def := DefaultConfig()
	if def.CacheEnabled || def.InsecureSkipVerify {
		t.Error("DefaultConfig() must not enable cache or disable TLS verification")
	}
	if def.Timeout != 60*time.Second || def.MaxRetries != 3 || def.CacheTTL != time.Hour {
		t.Errorf("DefaultConfig() = %+v", def)
	}
}
