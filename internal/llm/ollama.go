package llm

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
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

type OllamaConfig struct {
	Name    string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama targets a local or self-hosted Ollama server. Its chat endpoint
// returns the completion at message.content rather than inside a choices
// array, and takes no auth header.
type Ollama struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllama(cfg OllamaConfig) *Ollama {
	name := cfg.Name
	if name == "" {
		name = "ollama"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Ollama{
		name:       name,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) Name() string { return o.name }

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	messages := make([]message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, message{Role: m.Role, Content: m.Content})
	}
	model := req.Model
	if model == "" {
		model = o.model
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if req.JSONMode {
		body["format"] = "json"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ProviderError{Provider: o.name, Kind: KindPermanent, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: o.name, Kind: KindPermanent, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: o.name, Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &ProviderError{
			Provider: o.name,
			Kind:     KindForStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body))),
		}
	}

	var decoded struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Done bool `json:"done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &ProviderError{Provider: o.name, Kind: KindTransient, Err: fmt.Errorf("decode response: %w", err)}
	}
	content := Normalize(decoded.Message.Content)
	if content == "" {
		return "", &ProviderError{Provider: o.name, Kind: KindTransient, Err: errors.New("empty completion")}
	}
	return content, nil
}
