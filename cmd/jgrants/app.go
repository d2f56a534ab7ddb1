package main

import (
	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/cache"
	"github.com/kitbuilder587/jgrants-search/internal/cache/lru"
	"github.com/kitbuilder587/jgrants-search/internal/cache/memory"
	"github.com/kitbuilder587/jgrants-search/internal/config"
	"github.com/kitbuilder587/jgrants-search/internal/metrics"
	"github.com/kitbuilder587/jgrants-search/internal/search"
	"github.com/kitbuilder587/jgrants-search/internal/search/jgrants"
	"github.com/kitbuilder587/jgrants-search/internal/search/mcp"
)

// newSearchService wires transport, upstream adapter and cache backend from
// cfg. The returned func releases the cache's background sweeper.
func newSearchService(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*search.Service, func()) {
	scfg := cfg.SearchConfig()
	transport := search.NewTransport(scfg, logger, m)

	var upstream search.Upstream
	switch cfg.Upstream.Kind {
	case config.UpstreamMCP:
		upstream = mcp.New(mcp.Config{BaseURL: cfg.Upstream.MCPBaseURL}, transport, logger)
	default:
		upstream = jgrants.New(jgrants.Config{BaseURL: cfg.Upstream.JGrantsBaseURL}, transport, logger)
	}

	var backend cache.Cache
	stop := func() {}
	if scfg.CacheEnabled {
		switch cfg.Cache.Type {
		case config.CacheLRU:
			backend = lru.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		default:
			mem := memory.New()
			backend = mem
			stop = mem.Stop
		}
	}

	svc := search.NewService(search.ServiceDeps{
		Upstream: upstream,
		Cache:    backend,
		Logger:   logger,
		Metrics:  m,
		Config:   scfg,
	})
	return svc, stop
}
