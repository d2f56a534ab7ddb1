package search

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/metrics"
)

const maxBodySize = 10 << 20

// RequestFunc builds the request for one attempt. It is called again for
// every retry so request bodies are fresh.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// DecodeFunc turns a 200 body into a result. Plain errors become
// Unexpected; a *domain.ClientError is passed through as is.
type DecodeFunc func(body []byte) (*domain.SearchResult, error)

// Transport executes upstream HTTP calls with per-attempt deadlines,
// bounded exponential backoff and error classification. Upstream adapters
// share it.
type Transport struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewTransport(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Transport {
	cfg = cfg.withDefaults()

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for upstream requests")
	}

	t := &Transport{
		// no Client.Timeout: each attempt carries its own deadline
		client:  &http.Client{Transport: base},
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
	if cfg.RatePerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return t
}

func (t *Transport) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.cfg.RetryBaseDelay
	exp.MaxInterval = t.cfg.RetryMaxDelay
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(t.cfg.MaxRetries))
}

// Do runs attempts until one succeeds, a non-retryable error occurs, the
// retry budget is spent, or ctx ends. The returned error is always a
// *domain.ClientError carrying the attempt count.
func (t *Transport) Do(ctx context.Context, build RequestFunc, decode DecodeFunc) (*domain.SearchResult, error) {
	bo := t.newBackOff()
	logger := t.logger.With(zap.String("request_id", RequestIDFrom(ctx)))

	attempts := 0
	for {
		attempts++
		start := time.Now()
		res, cerr := t.attempt(ctx, build, decode)
		if cerr == nil {
			t.recordAttempt("ok")
			logger.Debug("upstream attempt succeeded",
				zap.Int("attempt", attempts),
				zap.Duration("duration", time.Since(start)),
			)
			res.Attempts = attempts
			return res, nil
		}

		cerr.Attempts = attempts
		t.recordAttempt(string(cerr.Kind))

		if !cerr.Kind.Retryable() || ctx.Err() != nil {
			return nil, cerr
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			logger.Warn("upstream retry budget exhausted",
				zap.Int("attempts", attempts),
				zap.String("kind", string(cerr.Kind)),
				zap.Error(cerr),
			)
			return nil, cerr
		}

		logger.Warn("upstream attempt failed, retrying",
			zap.Int("attempt", attempts),
			zap.String("kind", string(cerr.Kind)),
			zap.Int("status", cerr.StatusCode),
			zap.Duration("backoff", wait),
			zap.Error(cerr),
		)
		if t.metrics != nil {
			t.metrics.RecordRetry(string(cerr.Kind))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, cerr
		case <-timer.C:
		}
	}
}

func (t *Transport) attempt(ctx context.Context, build RequestFunc, decode DecodeFunc) (*domain.SearchResult, *domain.ClientError) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, domain.NewTimeoutError(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	req, err := build(ctx)
	if err != nil {
		return nil, domain.NewUnexpectedError(0, fmt.Errorf("create request: %w", err))
	}
	if id := RequestIDFrom(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewStatusError(resp.StatusCode, body)
	}

	res, err := decode(body)
	if err != nil {
		var cerr *domain.ClientError
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		return nil, domain.NewUnexpectedError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if res == nil {
		res = &domain.SearchResult{}
	}
	return res, nil
}

func classifyTransportError(err error) *domain.ClientError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTimeoutError(err)
	}
	return domain.NewNetworkError(err)
}

func (t *Transport) recordAttempt(result string) {
	if t.metrics != nil {
		t.metrics.RecordAttempt(result)
	}
}
