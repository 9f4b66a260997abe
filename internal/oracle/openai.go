package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenRouterModel = "openai/gpt-4o-mini"
)

// ChatClient speaks the OpenAI-compatible chat completions protocol, which
// covers both OpenAI itself and OpenRouter.
type ChatClient struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAI returns a client for the OpenAI chat completions API.
func NewOpenAI(apiKey, model string, logger *zap.Logger) *ChatClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	return newChatClient(ProviderOpenAI, openAIBaseURL, apiKey, model, logger)
}

// NewOpenRouter returns a client for OpenRouter's OpenAI-compatible API.
func NewOpenRouter(apiKey, model string, logger *zap.Logger) *ChatClient {
	if model == "" {
		model = defaultOpenRouterModel
	}
	return newChatClient(ProviderOpenRouter, openRouterBaseURL, apiKey, model, logger)
}

func newChatClient(name, baseURL, apiKey, model string, logger *zap.Logger) *ChatClient {
	return &ChatClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Classify sends a single-turn completion request. Temperature is always 0
// so identical inputs produce comparable classifications.
func (c *ChatClient) Classify(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxCompletionTokens,
		Temperature: 0,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("Classify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("Classify: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Classify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("Classify: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("chat completion request failed",
			zap.String("provider", c.name),
			zap.Int("status", resp.StatusCode),
			zap.String("body", snippet(body)),
		)
		return "", fmt.Errorf("Classify: %s returned status %d: %s", c.name, resp.StatusCode, snippet(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("Classify: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("Classify: %s API error: %s", c.name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("Classify: %s returned no choices", c.name)
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *ChatClient) Name() string { return c.name }

func (c *ChatClient) Close() error { return nil }
