// Package jgrants talks to the public Jグランツ subsidy search API.
package jgrants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/search"
)

const (
	DefaultBaseURL = "https://api.jgrants-portal.go.jp"
	searchPath     = "/exp/v1/public/subsidies"
)

// the upstream rejects requests missing any of these
var requiredDefaults = map[string]string{
	domain.FilterSort:       "acceptance_end_datetime",
	domain.FilterOrder:      domain.OrderAsc,
	domain.FilterAcceptance: "1",
}

type Config struct {
	BaseURL string
}

type Client struct {
	baseURL   string
	transport *search.Transport
	logger    *zap.Logger
}

func New(cfg Config, transport *search.Transport, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
		logger:    logger,
	}
}

type subsidiesResponse struct {
	Metadata struct {
		ResultSet struct {
			Count *int `json:"count"`
		} `json:"resultset"`
	} `json:"metadata"`
	Result []map[string]any `json:"result"`
}

func (c *Client) Fetch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	endpoint := c.baseURL + searchPath + "?" + c.params(query).Encode()

	c.logger.Debug("jgrants search",
		zap.String("keyword", query.Keyword()),
		zap.String("url", endpoint),
	)

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	return c.transport.Do(ctx, build, decode)
}

func (c *Client) params(query domain.SearchQuery) url.Values {
	v := url.Values{}
	v.Set("keyword", query.Keyword())
	for k, val := range query.Filters() {
		if val != "" {
			v.Set(k, val)
		}
	}
	for k, def := range requiredDefaults {
		if v.Get(k) == "" {
			v.Set(k, def)
		}
	}
	return v
}

func decode(body []byte) (*domain.SearchResult, error) {
	var resp subsidiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	records := make([]domain.Record, len(resp.Result))
	for i, r := range resp.Result {
		records[i] = domain.Record(r)
	}

	total := len(records)
	if resp.Metadata.ResultSet.Count != nil {
		total = *resp.Metadata.ResultSet.Count
	}

	return &domain.SearchResult{
		Records:    records,
		TotalCount: total,
	}, nil
}
