package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/service"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// anthropicClient implements the Client interface against the Anthropic API.
type anthropicClient struct {
	httpClient  *http.Client
	rateLimiter *rateLimiter
	endpoint    string
	apiKey      string
	model       string
	retry       service.RetryOptions
	maxTokens   int
	temperature float64
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-sonnet-20240229"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	return &anthropicClient{
		endpoint:    anthropicEndpoint,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
		rateLimiter: newRateLimiter(cfg.RateLimit),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// ClassifyRow sends a single-row classification request.
func (c *anthropicClient) ClassifyRow(ctx context.Context, req ClassificationRequest) (ClassificationResponse, error) {
	systemPrompt := "You are a business ledger classifier. Respond only with JSON in the exact format requested."

	content, err := c.complete(ctx, systemPrompt, buildClassifyPrompt(req))
	if err != nil {
		return ClassificationResponse{}, err
	}

	return parseClassification(content)
}

// JudgeHeader asks the model to break a header-detection tie.
func (c *anthropicClient) JudgeHeader(ctx context.Context, req HeaderJudgeRequest) (HeaderJudgeResponse, error) {
	systemPrompt := "You are a spreadsheet structure analyst. Respond only with JSON in the exact format requested."

	content, err := c.complete(ctx, systemPrompt, buildJudgePrompt(req))
	if err != nil {
		return HeaderJudgeResponse{}, err
	}

	return parseHeaderJudgment(content, req)
}

// Close stops the rate limiter's refill goroutine and releases idle
// connections.
func (c *anthropicClient) Close() error {
	c.rateLimiter.Close()
	c.httpClient.CloseIdleConnections()
	return nil
}

// complete sends one prompt and retries transient failures with backoff.
// Rate-limit responses and transport or server errors are retried; client
// errors and malformed responses are not.
func (c *anthropicClient) complete(ctx context.Context, system, prompt string) (string, error) {
	var content string
	err := common.WithRetry(ctx, func() error {
		var attemptErr error
		content, attemptErr = c.attempt(ctx, system, prompt)
		return attemptErr
	}, c.retry)
	return content, err
}

func (c *anthropicClient) attempt(ctx context.Context, system, prompt string) (string, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return "", err
	}

	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", common.ErrRateLimit, string(body))
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return response.Content[0].Text, nil
}

// anthropicResponse mirrors the Anthropic messages API response shape.
type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"content"`
	ID    string `json:"id"`
	Model string `json:"model"`
}
