// Package analyzer talks to an OpenAI-compatible chat completion service:
// a non-streaming vision call for report recognition and a streaming call
// for narrative analysis and chat.
package analyzer

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

	openai "github.com/sashabaranov/go-openai"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/stream"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const (
	completionsPath   = "/chat/completions"
	DefaultTimeout    = 120 * time.Second
	RecognizeMaxToken = 4096
)

var ErrNotConfigured = errors.New("AI API URL and key must be configured")

// Settings is the runtime configuration of the completion service.
type Settings struct {
	APIURL        string
	APIKey        string
	Model         string
	Timeout       time.Duration
	ProxyEnabled  bool
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string
}

// Attachment is the report content sent next to the prompt: either an
// image data URI or the extracted text layer of a document.
type Attachment struct {
	DataURI string
	Text    string
}

type Completer interface {
	Recognize(ctx context.Context, prompt string, att Attachment) (string, error)
	Stream(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, onFragment func(string)) (string, error)
	Model() string
}

type Client struct {
	api      *openai.Client
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
	logger   *utils.Logger
}

// NewClient validates settings and builds the HTTP client, including the
// optional proxy. A URL without a scheme is treated as SOCKS5.
func NewClient(s Settings, logger *utils.Logger) (*Client, error) {
	if strings.TrimSpace(s.APIURL) == "" || strings.TrimSpace(s.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.ProxyEnabled && strings.TrimSpace(s.ProxyURL) != "" {
		proxy, err := ParseProxy(s.ProxyURL, s.ProxyUsername, s.ProxyPassword)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	httpClient := &http.Client{Timeout: s.Timeout, Transport: transport}

	base := BaseURL(s.APIURL)
	cfg := openai.DefaultConfig(s.APIKey)
	cfg.BaseURL = base
	cfg.HTTPClient = httpClient

	return &Client{
		api:      openai.NewClientWithConfig(cfg),
		http:     httpClient,
		endpoint: base + completionsPath,
		apiKey:   s.APIKey,
		model:    s.Model,
		logger:   logger,
	}, nil
}

// BaseURL accepts either the full chat completions endpoint or the API base.
func BaseURL(apiURL string) string {
	u := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	return strings.TrimSuffix(u, completionsPath)
}

func ParseProxy(raw, username, password string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "socks5://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q", raw)
	}
	if username != "" {
		u.User = url.UserPassword(username, password)
	}
	return u, nil
}

func (c *Client) Model() string {
	return c.model
}

// Recognize sends one report to the vision model and returns the raw reply.
// An empty choice list is not an error; it yields an empty reply.
func (c *Client) Recognize(ctx context.Context, prompt string, att Attachment) (string, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	if att.Text != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: att.Text})
	}
	if att.DataURI != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: att.DataURI},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: RecognizeMaxToken,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	content := resp.Choices[0].Message.Content
	c.logger.Debug("vision reply", "model", c.model, "length", len(content))
	return content, nil
}

// Stream posts a streaming completion request and hands the body to the
// stream reader. On a broken stream the text received so far is returned
// with the error.
func (c *Client) Stream(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, onFragment func(string)) (string, error) {
	payload, err := json.Marshal(openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("completion service error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return stream.Read(resp.Body, onFragment)
}
