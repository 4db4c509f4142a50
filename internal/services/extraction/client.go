// Package extraction turns document images into structured analysis results
// using an OpenAI-compatible vision model.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rental-application-engine/internal/config"
	"rental-application-engine/internal/services/resilience"
)

var (
	ErrEmptyContent      = errors.New("no content received from analysis")
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// RawAnalysis is the JSON object the model is asked to produce.
type RawAnalysis struct {
	DocumentType         string          `json:"document_type"`
	ValidityAssessment   string          `json:"validity_assessment"`
	ExtractedInformation json.RawMessage `json:"extracted_information"`
	PotentialIssues      []string        `json:"potential_issues"`
}

// ClientConfig configures a VisionClient.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	RatePerSec  float64
	Burst       int
	Breaker     resilience.Config
	HTTPClient  *http.Client
	MaxTokens   int
	ImageDetail string
}

// ClientConfigFromApp maps application config to a ClientConfig.
func ClientConfigFromApp(cfg *config.Config) ClientConfig {
	return ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		Timeout:    cfg.ExtractionTimeout,
		RatePerSec: cfg.ExtractionRatePerSec,
		Burst:      cfg.ExtractionBurst,
		Breaker: resilience.Config{
			Enabled:         cfg.BreakerEnabled,
			MinRequests:     cfg.BreakerMinRequests,
			FailureRatio:    cfg.BreakerFailureRatio,
			OpenTimeout:     cfg.BreakerOpenTimeout,
			HalfOpenMaxReqs: cfg.BreakerHalfOpenMaxReq,
		},
	}
}

// VisionClient calls the chat completions endpoint with an image.
// Calls are paced by a token bucket and guarded by a circuit breaker.
type VisionClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	imageDetail string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
}

// NewVisionClient creates a vision client.
func NewVisionClient(cfg ClientConfig) *VisionClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.ImageDetail == "" {
		cfg.ImageDetail = "high"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &VisionClient{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		imageDetail: cfg.ImageDetail,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		breaker:     resilience.NewBreaker("document_extraction", cfg.Breaker),
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	MaxTokens      int            `json:"max_tokens"`
	Temperature    float64        `json:"temperature"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends prompt and image to the model and decodes its JSON answer.
func (c *VisionClient) Extract(ctx context.Context, imageURL, prompt string) (*RawAnalysis, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("image URL is required for document analysis")
	}
	if c.apiKey == "" {
		return nil, errors.New("API key is required for document analysis")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("extraction rate limit wait: %w", err)
	}

	var content string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		content, callErr = c.complete(ctx, imageURL, prompt)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var analysis RawAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(analysis.DocumentType) == "" {
		return nil, fmt.Errorf("%w: missing document_type", ErrMalformedResponse)
	}
	return &analysis, nil
}

func (c *VisionClient) complete(ctx context.Context, image, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: image, Detail: c.imageDetail}},
			},
		}},
		ResponseFormat: responseFormat{Type: "json_object"},
		MaxTokens:      c.maxTokens,
		Temperature:    0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call vision API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("vision API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyContent
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSONObject trims any text around the outermost JSON object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
