// Package gemini is a minimal client for the Gemini generateContent endpoint.
// It is shared by the object detector and the gesture refiner.
package gemini

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

// Defaults for the Gemini API.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 15 * time.Second
)

// ErrNoAPIKey is returned when the client is built without an API key.
var ErrNoAPIKey = errors.New("gemini: API key required")

// ErrEmptyResponse is returned when the API answers without any text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

// APIError represents a non-200 response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: API error %d: %s", e.StatusCode, e.Message)
}

// Config holds client configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls generateContent on a single model.
type Client struct {
	config Config
	http   *http.Client
}

// Part is a single content part: either text or inline image data.
type Part struct {
	Text     string
	MimeType string
	Data     []byte
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart returns an inline JPEG part.
func ImagePart(jpeg []byte) Part {
	return Part{MimeType: "image/jpeg", Data: jpeg}
}

// New creates a client. An empty API key is an error.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1000
	}

	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// GenerateContent sends the parts as a single user turn and returns the
// text of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, parts ...Part) (string, error) {
	wireParts := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			wireParts = append(wireParts, map[string]any{
				"inline_data": map[string]string{
					"mime_type": p.MimeType,
					"data":      base64.StdEncoding.EncodeToString(p.Data),
				},
			})
			continue
		}
		wireParts = append(wireParts, map[string]any{"text": p.Text})
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": wireParts},
		},
		"generationConfig": map[string]any{
			"temperature":     c.config.Temperature,
			"maxOutputTokens": c.config.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.config.BaseURL, c.config.Model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp generateResponse
		msg := truncate(string(respBody), 200)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

// StripFences removes markdown code fences the model sometimes wraps JSON in.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
