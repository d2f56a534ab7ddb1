package search

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kitbuilder587/jgrants-search/internal/cache"
	"github.com/kitbuilder587/jgrants-search/internal/cache/memory"
	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/metrics"
)

type ServiceDeps struct {
	Upstream Upstream
	Cache    cache.Cache
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Config   Config

	// optional, defaults to time.Now
	Clock func() time.Time
}

// Service is the search client used by the bot and the CLI: validation,
// TTL cache, coalescing of identical in-flight queries, and metrics around
// an Upstream.
type Service struct {
	upstream Upstream
	cache    cache.Cache
	logger   *zap.Logger
	metrics  *metrics.Metrics
	config   Config
	now      func() time.Time
	group    singleflight.Group
}

func NewService(deps ServiceDeps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	deps.Config = deps.Config.withDefaults()
	if deps.Config.CacheEnabled && deps.Cache == nil {
		deps.Cache = memory.New(memory.WithClock(deps.Clock))
	}

	return &Service{
		upstream: deps.Upstream,
		cache:    deps.Cache,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		config:   deps.Config,
		now:      deps.Clock,
	}
}

func (s *Service) Config() Config {
	return s.config
}

// Search validates query, answers from cache when possible, and otherwise
// calls the upstream. The returned result is a private copy. Errors are
// *domain.ClientError.
func (s *Service) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()

	if err := query.Validate(); err != nil {
		s.logger.Debug("search rejected", zap.Error(err))
		s.recordSearch(string(domain.KindValidation), "local", start)
		return nil, err
	}

	key := query.Fingerprint()
	logger := s.logger.With(
		zap.String("keyword", query.Keyword()),
		zap.String("fingerprint", key),
	)

	if s.config.CacheEnabled {
		if res, ok := s.lookup(key); ok {
			logger.Debug("cache hit", zap.Int("records", len(res.Records)))
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			s.recordSearch("success", "cache", start)
			return res, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
	}

	reqID := uuid.NewString()
	ch := s.group.DoChan(key, func() (any, error) {
		// shared between callers, so no single caller may cancel it;
		// per-attempt deadlines still bound it
		callCtx := WithRequestID(context.WithoutCancel(ctx), reqID)
		res, err := s.upstream.Fetch(callCtx, query)
		if err != nil {
			return nil, err
		}
		if s.config.CacheEnabled {
			s.store(key, res)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		cerr := classifyTransportError(ctx.Err())
		logger.Info("search abandoned by caller", zap.Error(ctx.Err()))
		s.recordSearch(string(cerr.Kind), "upstream", start)
		return nil, cerr

	case r := <-ch:
		if r.Shared && s.metrics != nil {
			s.metrics.RecordCoalesced()
		}
		if r.Err != nil {
			err := asClientError(r.Err)
			logger.Error("search failed",
				zap.String("request_id", reqID),
				zap.String("kind", string(domain.KindOf(err))),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			s.recordSearch(string(domain.KindOf(err)), "upstream", start)
			return nil, err
		}

		res := r.Val.(*domain.SearchResult).Copy()
		logger.Info("search completed",
			zap.String("request_id", reqID),
			zap.Int("records", len(res.Records)),
			zap.Int("attempts", res.Attempts),
			zap.Duration("duration", time.Since(start)),
		)
		s.recordSearch("success", "upstream", start)
		return res, nil
	}
}

func (s *Service) lookup(key string) (*domain.SearchResult, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := v.(domain.CacheEntry)
	if !ok || entry.Result == nil {
		return nil, false
	}
	// the backend may sweep lazily; never serve past TTL
	if entry.Expired(s.now(), s.config.CacheTTL) {
		return nil, false
	}

	res := entry.Result.Copy()
	res.FromCache = true
	res.Attempts = 0
	return res, true
}

func (s *Service) store(key string, res *domain.SearchResult) {
	s.cache.Set(key, domain.CacheEntry{
		Fingerprint: key,
		Result:      res.Copy(),
		InsertedAt:  s.now(),
	}, s.config.CacheTTL)
}

func (s *Service) recordSearch(outcome, source string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSearch(outcome, source, time.Since(start))
	}
}

func asClientError(err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.NewUnexpectedError(0, err)
}
