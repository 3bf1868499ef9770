package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		URL:        srv.URL,
		APIKey:     "secret",
		Collection: "math_problems",
		MaxRetries: retries,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresURLAndCollection(t *testing.T) {
	_, err := NewClient(Config{Collection: "c"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{URL: "http://localhost:6333"}, zap.NewNop())
	assert.Error(t, err)
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections/math_problems/points/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Limit)
		assert.True(t, req.WithPayload)
		assert.Len(t, req.Vector, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":[
			{"id":7,"score":0.91,"payload":{"problem":"2x+3=7","solution":"x=2","source":"gsm8k"}},
			{"id":"abc","score":0.55,"payload":{"problem":"1+1","solution":"2"}}
		]}`))
	}))
	defer srv.Close()

	docs, err := newTestClient(t, srv, 0).Search(context.Background(), []float32{0.1, 0.2}, 3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "7", docs[0].ID)
	assert.Equal(t, "2x+3=7", docs[0].Problem)
	assert.Equal(t, "x=2", docs[0].Solution)
	assert.Equal(t, "gsm8k", docs[0].Source)
	assert.InDelta(t, 0.91, docs[0].Score, 1e-9)
	assert.Equal(t, "abc", docs[1].ID)
	assert.Empty(t, docs[1].Source)
}

func TestClient_Search_EmptyVector(t *testing.T) {
	c, err := NewClient(Config{URL: "http://localhost:6333", Collection: "c"}, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Search(context.Background(), nil, 5)
	assert.Error(t, err)
}

func TestClient_Search_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":[]}`))
	}))
	defer srv.Close()

	docs, err := newTestClient(t, srv, 2).Search(context.Background(), []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Search_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Collection not found"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 3).Search(context.Background(), []float32{1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Collection not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/math_problems", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":{}}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(t, srv, 0).HealthCheck(context.Background()))
}
