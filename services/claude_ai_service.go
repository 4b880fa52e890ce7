package services

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

	"github.com/qwertys/qwertys-api/utils"
)

// ============================================================================
// CLAUDE AI SERVICE - Synthèse mensuelle des tests
// ============================================================================

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
	defaultClaudeModel   = "claude-3-5-sonnet-latest"
	insightsMaxTokens    = 1500
)

type ClaudeAIService struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	retries    int
	backoff    time.Duration
	httpClient *http.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      claudeUsage `json:"usage"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicError is a non-200 answer of the Messages API.
type AnthropicError struct {
	Status  int
	Type    string
	Message string
}

func (e *AnthropicError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic: %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic: %d %s", e.Status, e.Message)
}

// Temporary reports whether a later attempt may succeed (rate limit, overload).
func (e *AnthropicError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == 529 || e.Status >= 500
}

func NewClaudeAIService(apiKey, model string) *ClaudeAIService {
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeAIService{
		apiKey:     apiKey,
		model:      model,
		maxTokens:  insightsMaxTokens,
		baseURL:    anthropicMessagesURL,
		retries:    1,
		backoff:    2 * time.Second,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies).
func (s *ClaudeAIService) WithBaseURL(url string) *ClaudeAIService {
	s.baseURL = url
	return s
}

// WithRetry sets how many times an overloaded answer is retried.
func (s *ClaudeAIService) WithRetry(retries int, backoff time.Duration) *ClaudeAIService {
	s.retries, s.backoff = retries, backoff
	return s
}

func (s *ClaudeAIService) Configured() bool {
	return s.apiKey != ""
}

// Complete sends a single-turn prompt and returns the text blocks joined.
func (s *ClaudeAIService) Complete(ctx context.Context, system, prompt string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrNotConfigured)
	}

	payload, err := json.Marshal(claudeRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    system,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			utils.SafeWarn("⏳ Claude overloaded, retry %d/%d", attempt, s.retries)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}

		text, err := s.send(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		var apiErr *AnthropicError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() {
			break
		}
	}
	return "", lastErr
}

func (s *ClaudeAIService) send(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseAnthropicError(resp.StatusCode, body)
	}

	var out claudeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}
	if out.StopReason == "max_tokens" {
		utils.SafeWarn("⚠️ Claude summary truncated at %d tokens", s.maxTokens)
	}

	utils.SafeInfo("🤖 Claude %s | tokens in %d / out %d | cost $%.5f",
		out.Model, out.Usage.InputTokens, out.Usage.OutputTokens,
		s.EstimateCost(out.Usage.InputTokens, out.Usage.OutputTokens))

	return b.String(), nil
}

func parseAnthropicError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &AnthropicError{Status: status}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		apiErr.Type = payload.Error.Type
		apiErr.Message = payload.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// ============================================================================
// ESTIMATION DES COÛTS
// ============================================================================

// Pricing (approximate for Claude 3.5 Sonnet)
const (
	InputTokenPrice  = 0.000003 // $3 per million
	OutputTokenPrice = 0.000015 // $15 per million
)

func (s *ClaudeAIService) EstimateCost(inputTokens int, outputTokens int) float64 {
	return float64(inputTokens)*InputTokenPrice + float64(outputTokens)*OutputTokenPrice
}
