// Package gemini adapts the Google Gemini API to the providers.Provider
// interface.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/upb/math-rag-agent/services/providers"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
)

// contentGenerator is the slice of *genai.Models the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Adapter implements providers.Provider on top of google.golang.org/genai.
type Adapter struct {
	config providers.ProviderConfig
	models contentGenerator
}

// NewAdapter creates a Gemini client using the Gemini API backend.
func NewAdapter(ctx context.Context, config providers.ProviderConfig) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientCfg.HTTPOptions.Timeout = &config.Timeout
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return newAdapter(config, client.Models), nil
}

// New is a providers.ProviderBuilder.
func New(config providers.ProviderConfig) (providers.Provider, error) {
	return NewAdapter(context.Background(), config)
}

func newAdapter(config providers.ProviderConfig, models contentGenerator) *Adapter {
	if config.DefaultModel == "" {
		config.DefaultModel = defaultModel
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	return &Adapter{config: config, models: models}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providerName
}

// ChatCompletion sends the conversation to Gemini. System messages become
// the system instruction; assistant turns map to the model role.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.DefaultModel
	}
	contents, genCfg := a.buildRequest(req)
	if len(contents) == 0 {
		return nil, providers.NewProviderError(a.Name(), "INVALID_REQUEST", "no user content", 400, false, nil)
	}

	var resp *genai.GenerateContentResponse
	backoff := retry.WithMaxRetries(uint64(a.config.MaxRetries), retry.NewExponential(a.config.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = a.models.GenerateContent(ctx, model, contents, genCfg)
		if callErr == nil {
			return nil
		}
		provErr := a.wrapError(ctx, callErr)
		if provErr.Retryable {
			return retry.RetryableError(provErr)
		}
		return provErr
	})
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "model returned no text", 0, false, nil)
	}

	out := &providers.ChatResponse{
		ID:       resp.ResponseID,
		Model:    model,
		Provider: a.Name(),
		Choices: []providers.Choice{{
			Index:        0,
			Message:      providers.Message{Role: "assistant", Content: text},
			FinishReason: finishReason(resp),
		}},
		Latency: time.Since(startTime),
		Created: time.Now(),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = providers.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (a *Adapter) buildRequest(req *providers.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

func (a *Adapter) wrapError(ctx context.Context, err error) *providers.ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(a.Name(), apiErr.Status, "Gemini API error", apiErr.Code,
			providers.IsRetryableStatus(apiErr.Code), err)
	}
	return providers.NewProviderError(a.Name(), "HTTP_ERROR", "Gemini request failed", 0, ctx.Err() == nil, err)
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return strings.ToLower(string(resp.Candidates[0].FinishReason))
}
