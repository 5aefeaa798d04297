// Package tts wraps the ElevenLabs text-to-speech API behind a small
// synthesis interface the worker can stub in tests.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/services"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io"
	defaultHTTPTimeout = 60 * time.Second
	// errorBodyExcerptBytes bounds how much of an error response is carried
	// into logs and job records.
	errorBodyExcerptBytes = 500
)

// Request describes one synthesis call.
type Request struct {
	Text    string
	VoiceID string
	ModelID string
}

// Synthesizer converts a script into an audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Client talks to the ElevenLabs synthesis endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the synthesis client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a synthesis client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// NewFromConfig builds a client from the TTS section of the config.
func NewFromConfig(cfg *config.Config) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TTS.RequestTimeout > 0 {
		timeout = time.Duration(cfg.TTS.RequestTimeout) * time.Second
	}
	return NewClient(
		cfg.TTS.APIKey,
		WithBaseURL(cfg.TTS.BaseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize posts a script to the voice endpoint and returns the audio
// payload. Non-2xx responses surface the status code and a bounded excerpt
// of the response body. An empty 2xx payload is an error.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "script text required", nil)
	}
	if strings.TrimSpace(req.VoiceID) == "" || strings.TrimSpace(req.ModelID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "voice and model are required", nil)
	}
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "api key required", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/v1/text-to-speech/", req.VoiceID)
	if err != nil {
		return nil, fmt.Errorf("tts synthesize: build url: %w", err)
	}
	encoded, err := json.Marshal(synthesisRequest{Text: req.Text, ModelID: req.ModelID})
	if err != nil {
		return nil, fmt.Errorf("tts synthesize: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("tts synthesize: request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "tts", "synthesize", "request timed out", err)
		}
		return nil, fmt.Errorf("tts synthesize: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyExcerptBytes))
		return nil, fmt.Errorf("tts synthesize: http %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts synthesize: read payload: %w", err)
	}
	if len(payload) == 0 {
		return nil, errors.New("tts synthesize: empty audio payload")
	}
	return payload, nil
}
