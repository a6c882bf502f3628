package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/ports"
)

// TransientError marks failures worth retrying: timeouts, network errors,
// HTTP 429 and 5xx responses.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("openai transient error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("openai transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// OpenAIClient implements ports.ChatClient against an OpenAI-compatible
// chat completions endpoint.
type OpenAIClient struct {
	endpoint      string
	model         string
	apiKey        string
	systemPrompt  string
	maxAttempts   int
	retryInterval time.Duration
	httpClient    *http.Client
}

var _ ports.ChatClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &OpenAIClient{
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		apiKey:        cfg.APIKey,
		systemPrompt:  cfg.SystemPrompt,
		maxAttempts:   attempts,
		retryInterval: time.Second,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// WithRetryInterval overrides the initial backoff interval.
func (c *OpenAIClient) WithRetryInterval(d time.Duration) *OpenAIClient {
	c.retryInterval = d
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as the user message and returns the assistant reply.
// Transient failures are retried with exponential backoff.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx)

	var reply string
	err = backoff.Retry(func() error {
		out, err := c.send(ctx, body)
		if err != nil {
			var transient *TransientError
			if errors.As(err, &transient) {
				return err
			}
			return backoff.Permanent(err)
		}
		reply = out
		return nil
	}, retry)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *OpenAIClient) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", &TransientError{Err: err}
		}
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		cause := fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", &TransientError{Status: resp.StatusCode, Err: cause}
		}
		return "", cause
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a helpful assistant that categorizes newsletter content."
	}
	return prompt
}
