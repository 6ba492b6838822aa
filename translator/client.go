package translator

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

	"github.com/aluiziolira/go-scrape-shops/config"
)

// ErrEmptyResponse is returned when the API answers without a choice.
var ErrEmptyResponse = errors.New("translator: no translation content received")

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	APIURL     string
	APIKey     string
	Model      string
	Prompt     string
	HTTPClient *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewClient builds a client that translates from cfg.SourceLang to cfg.TargetLang.
func NewClient(cfg config.TranslatorConfig) *Client {
	return &Client{
		APIURL: cfg.APIURL,
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
		Prompt: fmt.Sprintf(
			"Translate the following product text from %s to %s. Reply with the translation only.",
			cfg.SourceLang, cfg.TargetLang,
		),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Translate implements Translator. Blank text is returned without a request.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.Prompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation request failed with status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
