// Package summarize talks to an OpenAI-compatible chat-completions
// endpoint. Which instruction profile a request carries decides the style
// of the output: neutral digest, moderator note, or suggested reply.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// maxContentLen bounds the user content sent per request.
const maxContentLen = 8000

// RequestError reports a failed or malformed response from the
// summarization endpoint, or a missing credential.
type RequestError struct {
	Status int // 0 for transport/shape/credential failures
	Reason string
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		if e.Reason != "" {
			return fmt.Sprintf("summarization request failed with status %d: %s", e.Status, e.Reason)
		}
		return fmt.Sprintf("summarization request failed with status %d", e.Status)
	}
	return "summarization: " + e.Reason
}

// Client calls a chat-completions endpoint.
type Client struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string

	HTTP *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends content under the given profile's system instruction and
// returns the completion text. Missing API key, non-2xx status, or a
// choice-less response body is a *RequestError.
func (c *Client) Complete(ctx context.Context, profile Profile, content string) (string, error) {
	if c.APIKey == "" {
		return "", &RequestError{Reason: "API key not set"}
	}
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: profile.system()},
			{Role: "user", Content: content},
		},
		Temperature: profile.temperature(),
		MaxTokens:   profile.maxTokens(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	var result chatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := ""
		if decodeErr == nil && result.Error != nil {
			reason = result.Error.Message
		}
		return "", &RequestError{Status: resp.StatusCode, Reason: reason}
	}
	if decodeErr != nil {
		return "", &RequestError{Reason: "decode response: " + decodeErr.Error()}
	}
	if len(result.Choices) == 0 {
		return "", &RequestError{Reason: "response contains no choices"}
	}
	return result.Choices[0].Message.Content, nil
}
