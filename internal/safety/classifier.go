package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shortly/internal/entities"
)

// ContentClassifier asks a probabilistic model whether a URL is safe.
// hint carries the threat-list result, if any.
type ContentClassifier interface {
	Classify(ctx context.Context, url string, hint *entities.ThreatType) (*Classification, error)
}

const (
	defaultClassifierEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultClassifierModel    = "gpt-4o-mini"
)

const classifierPrompt = `You review URLs submitted to a link shortener.
Answer with a single JSON object and nothing else:
{"isSafe": bool, "flagged": bool, "reason": string or null, "category": "safe"|"suspicious"|"malicious"|"inappropriate"|"unknown", "confidence": number between 0 and 1}`

// ChatClassifier talks to an OpenAI-compatible chat completions endpoint
type ChatClassifier struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// NewChatClassifier builds a classifier. Empty endpoint and model fall back to defaults.
func NewChatClassifier(apiKey, endpoint, model string) *ChatClassifier {
	if endpoint == "" {
		endpoint = defaultClassifierEndpoint
	}
	if model == "" {
		model = defaultClassifierModel
	}
	return &ChatClassifier{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 15 * time.Second},
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
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func userPrompt(url string, hint *entities.ThreatType) string {
	var b strings.Builder
	b.WriteString("URL: ")
	b.WriteString(url)
	if hint != nil {
		b.WriteString("\nA threat-intelligence list already reports this URL as ")
		b.WriteString(string(*hint))
		b.WriteString(". Be conservative.")
	}
	return b.String()
}

// Classify sends the URL to the model and parses its answer defensively
func (c *ChatClassifier) Classify(ctx context.Context, url string, hint *entities.ThreatType) (*Classification, error) {
	const op = "safety.ChatClassifier.Classify"

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierPrompt},
			{Role: "user", Content: userPrompt(url, hint)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no choices", op, ErrMalformedResponse)
	}

	classification, err := ParseClassification([]byte(out.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return classification, nil
}
