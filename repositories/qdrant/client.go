// Package qdrant is a small REST client for the Qdrant collection holding
// solved math problems.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/internal/rag"
)

const (
	searchPath     = "/collections/{collection}/points/search"
	collectionPath = "/collections/{collection}"

	defaultTimeout = 10 * time.Second
	defaultTopK    = 5
	retryBase      = 100 * time.Millisecond
)

// Config configures the client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements rag.VectorIndex over the Qdrant HTTP API.
type Client struct {
	http       *resty.Client
	collection string
	maxRetries uint64
	logger     *zap.Logger
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResult struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type searchResponse struct {
	Result []searchResult `json:"result"`
	Status string         `json:"status"`
}

type apiError struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

// NewClient builds a client for one collection.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, errors.New("qdrant: url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("api-key", cfg.APIKey)
	}

	return &Client{
		http:       httpClient,
		collection: cfg.Collection,
		maxRetries: uint64(retries),
		logger:     logger,
	}, nil
}

// Search returns the topK nearest stored problems, highest score first.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]rag.Document, error) {
	if len(vector) == 0 {
		return nil, errors.New("qdrant: empty query vector")
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	var out searchResponse
	err := c.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("collection", c.collection).
			SetBody(searchRequest{Vector: vector, Limit: topK, WithPayload: true}).
			SetResult(&out).
			SetError(&apiError{}).
			Post(searchPath)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("qdrant search completed",
		zap.String("collection", c.collection),
		zap.Int("results", len(out.Result)),
	)
	return mapResults(out.Result), nil
}

// HealthCheck verifies that the collection exists and is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("collection", c.collection).
			SetError(&apiError{}).
			Get(collectionPath)
	})
}

// do runs call with exponential backoff on transport errors and 5xx
// responses. Client errors are returned immediately.
func (c *Client) do(ctx context.Context, call func(context.Context) (*resty.Response, error)) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := call(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(fmt.Errorf("qdrant: request failed: %w", err))
		}
		if !resp.IsError() {
			return nil
		}
		reqErr := responseError(resp)
		if resp.StatusCode() >= http.StatusInternalServerError {
			return retry.RetryableError(reqErr)
		}
		return reqErr
	})
}

func responseError(resp *resty.Response) error {
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Status.Error != "" {
		return fmt.Errorf("qdrant: %s (%d)", apiErr.Status.Error, resp.StatusCode())
	}
	return fmt.Errorf("qdrant: request failed with status %d", resp.StatusCode())
}

func mapResults(results []searchResult) []rag.Document {
	docs := make([]rag.Document, 0, len(results))
	for _, res := range results {
		docs = append(docs, rag.Document{
			ID:       fmt.Sprint(res.ID),
			Problem:  payloadString(res.Payload, "problem"),
			Solution: payloadString(res.Payload, "solution"),
			Source:   payloadString(res.Payload, "source"),
			Score:    res.Score,
		})
	}
	return docs
}

func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
