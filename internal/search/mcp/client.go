// Package mcp reaches the subsidy search through an MCP server's
// search_subsidies tool over JSON-RPC 2.0.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/search"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	ToolName       = "search_subsidies"
)

var (
	ErrEmptyContent = errors.New("empty tool content")
	ErrToolFailed   = errors.New("tool call failed")
)

type Config struct {
	BaseURL string
}

type Client struct {
	endpoint  string
	transport *search.Transport
	logger    *zap.Logger
	nextID    atomic.Int64
}

func New(cfg Config, transport *search.Transport, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &Client{
		endpoint:  strings.TrimRight(cfg.BaseURL, "/") + "/mcp",
		transport: transport,
		logger:    logger,
	}
}

type rpcRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int64      `json:"id"`
	Method  string     `json:"method"`
	Params  callParams `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolPayload struct {
	TotalCount *int             `json:"total_count"`
	Subsidies  []map[string]any `json:"subsidies"`
	Error      string           `json:"error"`
}

func (c *Client) Fetch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "tools/call",
		Params: callParams{
			Name:      ToolName,
			Arguments: arguments(query),
		},
	})
	if err != nil {
		return nil, domain.NewUnexpectedError(0, fmt.Errorf("marshal request: %w", err))
	}

	c.logger.Debug("mcp tool call",
		zap.String("tool", ToolName),
		zap.String("keyword", query.Keyword()),
	)

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		return req, nil
	}

	return c.transport.Do(ctx, build, decode)
}

// arguments mirrors the tool schema: acceptance is an integer there.
func arguments(query domain.SearchQuery) map[string]any {
	args := map[string]any{"keyword": query.Keyword()}
	for k, v := range query.Filters() {
		if v == "" {
			continue
		}
		if k == domain.FilterAcceptance {
			if n, err := strconv.Atoi(v); err == nil {
				args[k] = n
				continue
			}
		}
		args[k] = v
	}
	return args
}

func decode(body []byte) (*domain.SearchResult, error) {
	body = unwrapEventStream(body)

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %d %s", ErrToolFailed, resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil || len(resp.Result.Content) == 0 {
		return nil, ErrEmptyContent
	}

	text := resp.Result.Content[0].Text
	if resp.Result.IsError {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, text)
	}

	var payload toolPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal tool content: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, payload.Error)
	}

	records := make([]domain.Record, len(payload.Subsidies))
	for i, s := range payload.Subsidies {
		records[i] = domain.Record(s)
	}
	total := len(records)
	if payload.TotalCount != nil {
		total = *payload.TotalCount
	}

	return &domain.SearchResult{Records: records, TotalCount: total}, nil
}

// unwrapEventStream returns the last data: payload when the server answered
// with text/event-stream, and body unchanged otherwise.
func unwrapEventStream(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("event:")) && !bytes.HasPrefix(trimmed, []byte("data:")) {
		return body
	}

	var last []byte
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), len(trimmed)+1)
	for sc.Scan() {
		line := sc.Bytes()
		if data, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			last = append([]byte(nil), bytes.TrimSpace(data)...)
		}
	}
	if last == nil {
		return body
	}
	return last
}
