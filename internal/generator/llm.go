package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Gateway is the boundary to the hosted text-generation service.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	// MaxRetries bounds retries of 429 and 5xx responses and transport errors.
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

var sleepFn = time.Sleep

// NewClient builds a Client from the llm config section.
func NewClient(cfg LLMConfig, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout()},
		Logger:      logger,
	}
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "", prompt)
}

// Chat sends an optional system prompt and a user prompt and returns the
// content of the first choice.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	messages := make([]map[string]string, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	payload := map[string]interface{}{
		"model":    c.Model,
		"messages": messages,
	}
	if c.MaxTokens > 0 {
		payload["max_tokens"] = c.MaxTokens
	}
	if c.Temperature > 0 {
		payload["temperature"] = c.Temperature
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if c.Logger != nil {
		c.Logger.Debug("llm request", "url", endpoint, "model", c.Model, "prompt_chars", len(userPrompt))
	}

	var lastErr error
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && ctx.Err() == nil {
				c.retrying(attempt, err)
				sleepFn(backoff(attempt))
				continue
			}
			return "", err
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				c.retrying(attempt, err)
				sleepFn(backoff(attempt))
				continue
			}
			return "", err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm error status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			if attempt < maxRetries {
				wait := backoff(attempt)
				if resp.StatusCode == http.StatusTooManyRequests {
					if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
						if secs, err := strconv.Atoi(ra); err == nil {
							wait = time.Duration(secs) * time.Second
						}
					}
				}
				c.retrying(attempt, lastErr)
				sleepFn(wait)
				continue
			}
			return "", lastErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("llm error status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}

		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return "", fmt.Errorf("decode llm response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", errors.New("llm response has no choices")
		}
		content := out.Choices[0].Message.Content
		if c.Logger != nil {
			c.Logger.Debug("llm response", "content_chars", len(content))
		}
		return content, nil
	}
	if lastErr == nil {
		lastErr = errors.New("llm request failed")
	}
	return "", lastErr
}

func (c *Client) retrying(attempt int, err error) {
	if c.Logger != nil {
		c.Logger.Warn("llm request failed, retrying", "attempt", attempt+1, "error", err)
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Second << attempt
}
