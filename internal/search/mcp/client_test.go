package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/search"
)

func toolResult(t *testing.T, payload any) string {
	t.Helper()
	text, err := json.Marshal(payload)
	require.NoError(t, err)
	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"content": []map[string]any{{"type": "text", "text": string(text)}},
		},
	}
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b)
}

func newTestClient(baseURL string) *Client {
	tr := search.NewTransport(search.Config{
		Timeout:        2 * time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}, zap.NewNop(), nil)
	return New(Config{BaseURL: baseURL}, tr, zap.NewNop())
}

func TestClient_Fetch(t *testing.T) {
	var got rpcRequest
	var gotArgs map[string]any
	body := toolResult(t, map[string]any{
		"total_count": 1,
		"subsidies": []map[string]any{
			{"id": "a0W5h00000UaLxQEAV", "title": "ものづくり補助金"},
		},
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		var probe struct {
			Params struct {
				Arguments map[string]any `json:"arguments"`
			} `json:"params"`
		}
		_ = json.Unmarshal(raw, &got)
		_ = json.Unmarshal(raw, &probe)
		gotArgs = probe.Params.Arguments

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	q, err := domain.NewSearchQuery("ものづくり", map[string]string{
		domain.FilterAcceptance: "1",
		domain.FilterArea:       "全国",
	})
	require.NoError(t, err)

	res, err := newTestClient(srv.URL).Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "2.0", got.JSONRPC)
	assert.Equal(t, "tools/call", got.Method)
	assert.Equal(t, ToolName, got.Params.Name)
	assert.Equal(t, "ものづくり", gotArgs["keyword"])
	assert.Equal(t, float64(1), gotArgs["acceptance"], "acceptance should be sent as a number")
	assert.Equal(t, "全国", gotArgs["target_area_search"])

	require.Len(t, res.Records, 1)
	assert.Equal(t, "ものづくり補助金", res.Records[0].Title())
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 1, res.Attempts)
}

func TestClient_RequestIDsIncrease(t *testing.T) {
	ids := make(chan int64, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		ids <- req.ID
		io.WriteString(w, toolResult(t, map[string]any{"subsidies": []any{}}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	q, _ := domain.NewSearchQuery("事業", nil)
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), q)
		require.NoError(t, err)
	}

	first, second := <-ids, <-ids
	assert.Greater(t, second, first)
}

func TestArguments(t *testing.T) {
	q, err := domain.NewSearchQuery("事業", map[string]string{
		domain.FilterAcceptance: "0",
		domain.FilterIndustry:   "",
		"custom":                "x",
	})
	require.NoError(t, err)

	args := arguments(q)
	assert.Equal(t, "事業", args["keyword"])
	assert.Equal(t, 0, args["acceptance"])
	assert.Equal(t, "x", args["custom"])
	assert.NotContains(t, args, domain.FilterIndustry)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		body      func(t *testing.T) string
		wantLen   int
		wantTotal int
		wantErr   error
		anyErr    bool
	}{
		{
			name: "total count present",
			body: func(t *testing.T) string {
				return toolResult(t, map[string]any{
					"total_count": 57,
					"subsidies":   []map[string]any{{"id": "1"}, {"id": "2"}},
				})
			},
			wantLen:   2,
			wantTotal: 57,
		},
		{
			name: "total count missing",
			body: func(t *testing.T) string {
				return toolResult(t, map[string]any{"subsidies": []map[string]any{{"id": "1"}}})
			},
			wantLen:   1,
			wantTotal: 1,
		},
		{
			name: "event stream",
			body: func(t *testing.T) string {
				return "event: message\ndata: " + toolResult(t, map[string]any{
					"subsidies": []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3"}},
				}) + "\n\n"
			},
			wantLen:   3,
			wantTotal: 3,
		},
		{
			name: "rpc error",
			body: func(t *testing.T) string {
				return `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"unknown tool"}}`
			},
			wantErr: ErrToolFailed,
		},
		{
			name: "tool reported error",
			body: func(t *testing.T) string {
				return `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"rate limited"}],"isError":true}}`
			},
			wantErr: ErrToolFailed,
		},
		{
			name: "payload error field",
			body: func(t *testing.T) string {
				return toolResult(t, map[string]any{"error": "API request failed"})
			},
			wantErr: ErrToolFailed,
		},
		{
			name: "no content",
			body: func(t *testing.T) string {
				return `{"jsonrpc":"2.0","id":1,"result":{"content":[]}}`
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "garbage",
			body: func(t *testing.T) string {
				return "not json"
			},
			anyErr: true,
		},
		{
			name: "content not json",
			body: func(t *testing.T) string {
				return `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"hello"}]}}`
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := decode([]byte(tt.body(t)))
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			case tt.anyErr:
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.Records, tt.wantLen)
			assert.Equal(t, tt.wantTotal, res.TotalCount)
		})
	}
}

func TestUnwrapEventStream(t *testing.T) {
	plain := []byte(`{"a":1}`)
	assert.Equal(t, plain, unwrapEventStream(plain))

	stream := []byte("event: message\ndata: {\"a\":1}\n\nevent: message\ndata: {\"a\":2}\n")
	assert.Equal(t, []byte(`{"a":2}`), unwrapEventStream(stream))

	noData := []byte("event: ping\n")
	assert.Equal(t, noData, unwrapEventStream(noData))
}

func TestClient_ToolFailureIsUnexpected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"internal"}}`)
	}))
	defer srv.Close()

	q, _ := domain.NewSearchQuery("事業", nil)
	_, err := newTestClient(srv.URL).Fetch(context.Background(), q)

	assert.Equal(t, domain.KindUnexpected, domain.KindOf(err))
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Equal(t, int32(1), calls.Load(), "unexpected errors are not retried")
}

func TestClient_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, toolResult(t, map[string]any{"subsidies": []map[string]any{{"id": "1"}}}))
	}))
	defer srv.Close()

	q, _ := domain.NewSearchQuery("事業", nil)
	res, err := newTestClient(srv.URL).Fetch(context.Background(), q)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}
