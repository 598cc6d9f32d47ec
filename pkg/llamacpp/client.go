// Package llamacpp talks to a llama.cpp server through its OpenAI-compatible
// chat completions endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is where llama-server listens unless told otherwise
const DefaultURL = "http://localhost:8080"

const (
	chatPath       = "/v1/chat/completions"
	defaultTimeout = 300 * time.Second
	maxReplyBytes  = 4 << 20
)

var errNoText = errors.New("no text content in completion")

// Client queries a vision model served by llama-server
type Client struct {
	baseURL     string
	httpClient  *http.Client
	temperature float64
	maxTokens   int
	jsonReplies bool
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for completions
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSampling sets the temperature and the completion token limit
func WithSampling(temperature float64, maxTokens int) Option {
	return func(c *Client) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

// WithJSONReplies asks the server to constrain replies to a JSON object
func WithJSONReplies() Option {
	return func(c *Client) { c.jsonReplies = true }
}

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewClient creates a client for the server at serverURL (DefaultURL when empty)
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid server URL %q: only http and https are supported", serverURL)
	}

	c := &Client{
		baseURL:     strings.TrimSuffix(serverURL, "/"),
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		temperature: 0.1,
		maxTokens:   1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SimpleQuery sends the prompt and an optional base64 image and returns the
// first text reply
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: dataURL(imgB64)},
		})
	}
	content, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	req := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if c.jsonReplies {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := c.post(ctx, chatPath, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llama.cpp: %w: no choices", errNoText)
	}

	text, err := messageText(resp.Choices[0].Message.Content)
	if err != nil {
		return "", fmt.Errorf("llama.cpp: %w", err)
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llama.cpp request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama.cpp returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// messageText accepts either a plain string or a list of content parts
func messageText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errNoText
		}
		return s, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unexpected message content: %w", err)
	}
	for _, p := range parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", errNoText
}

// dataURL labels the image with its sniffed MIME type
func dataURL(imgB64 string) string {
	mime := "image/jpeg"
	head := imgB64
	if len(head) > 64 {
		head = head[:64]
	}
	if prefix, err := base64.StdEncoding.DecodeString(head[:len(head)/4*4]); err == nil {
		if sniffed := http.DetectContentType(prefix); strings.HasPrefix(sniffed, "image/") {
			mime = sniffed
		}
	}
	return "data:" + mime + ";base64," + imgB64
}
