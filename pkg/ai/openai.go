package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/models"
)

// OpenAI talks to an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	BaseURL string
	APIKey  string
	Model   string
	Window  int
	HTTP    *http.Client

	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewOpenAI(baseURL, apiKey, model string, window int, logger *logrus.Logger, m *metrics.Metrics) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if window <= 0 {
		window = 5
	}
	return &OpenAI{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Window:  window,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
		logger:  logger,
		metrics: m,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAI) GenerateReply(ctx context.Context, history []models.Message, profile models.OwnerProfile) (string, error) {
	system := fmt.Sprintf(
		"You are an intelligent AI assistant for %s. Be natural, helpful, and human-like. "+
			"Answer basic FAQs using this info: %s. Ask clarifying questions if needed. "+
			"Set expectations like 'I'll note this down for %s.' The owner is busy, so handle initial queries.",
		profile.DisplayName, profile.FAQInfo, profile.DisplayName)

	msgs := []chatMessage{{Role: "system", Content: system}}
	for _, m := range BoundHistory(history, c.Window) {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	return c.chat(ctx, "generate_reply", msgs, 0.7, false)
}

func (c *OpenAI) AnalyzeImportance(ctx context.Context, history []models.Message, profile models.OwnerProfile, userTurns int) (models.Analysis, error) {
	transcript := make([]string, 0, len(history))
	for _, m := range history {
		transcript = append(transcript, string(m.Role)+": "+m.Content)
	}

	thresholdDesc := map[models.Threshold]string{
		models.ThresholdLow:    "Escalate if urgency is medium or higher, or any negative sentiment, or complex.",
		models.ThresholdMedium: "Escalate if urgency high, or strong negative/positive sentiment, or complex after 2-3 exchanges.",
		models.ThresholdHigh:   "Escalate only if urgency high and keywords present, or very negative sentiment.",
	}[profile.Threshold]

	prompt := fmt.Sprintf(`Analyze this conversation:
%s

- Sentiment score: -1 (very negative) to 1 (very positive)
- Urgency: low, medium, high
- Intent: brief description
- Complex question: true if cannot answer confidently after %d exchanges
- Based on threshold: %s and if keywords like %s present.
- Escalate: true/false

Output as JSON: {"sentiment_score": float, "urgency": "low/medium/high", "intent": "str", "complex": bool, "escalate": bool}`,
		strings.Join(transcript, "\n"), userTurns, thresholdDesc, strings.Join(profile.KeywordList(), ","))

	raw, err := c.chat(ctx, "analyze_importance", []chatMessage{{Role: "user", Content: prompt}}, 0, true)
	if err != nil {
		return models.Analysis{}, err
	}
	return DecodeAnalysis(raw)
}

func (c *OpenAI) Summarize(ctx context.Context, transcript string) (string, error) {
	return c.oneShot(ctx, "summarize", "Provide a concise summary of this conversation: "+transcript)
}

func (c *OpenAI) KeyPoints(ctx context.Context, transcript string) (string, error) {
	return c.oneShot(ctx, "key_points", "Extract 2-3 key points as bullet points: "+transcript)
}

func (c *OpenAI) SuggestAction(ctx context.Context, transcript string) (string, error) {
	return c.oneShot(ctx, "suggest_action", "Suggest an action for the owner: "+transcript)
}

func (c *OpenAI) oneShot(ctx context.Context, op, prompt string) (string, error) {
	return c.chat(ctx, op, []chatMessage{{Role: "user", Content: prompt}}, 0.7, false)
}

func (c *OpenAI) chat(ctx context.Context, op string, msgs []chatMessage, temperature float64, forceJSON bool) (string, error) {
	start := time.Now()
	defer func() {
		c.metrics.AIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	body := chatCompletionRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: temperature,
	}
	if forceJSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.metrics.AIRequestFailures.WithLabelValues(op).Inc()
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.AIRequestFailures.WithLabelValues(op).Inc()
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.metrics.AIRequestFailures.WithLabelValues(op).Inc()
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.AIRequestFailures.WithLabelValues(op).Inc()
		errMsg := resp.Status
		if out.Error != nil {
			errMsg = out.Error.Message
		}
		return "", fmt.Errorf("chat request rejected: %s", errMsg)
	}

	if len(out.Choices) == 0 {
		c.metrics.AIRequestFailures.WithLabelValues(op).Inc()
		return "", fmt.Errorf("chat response has no choices")
	}

	return out.Choices[0].Message.Content, nil
}

// DecodeAnalysis parses the collaborator's JSON judgment, normalizing
// urgency and clamping sentiment into [-1, 1].
func DecodeAnalysis(raw string) (models.Analysis, error) {
	var payload struct {
		Sentiment float64 `json:"sentiment_score"`
		Urgency   string  `json:"urgency"`
		Intent    string  `json:"intent"`
		Complex   bool    `json:"complex"`
		Escalate  bool    `json:"escalate"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.Analysis{}, fmt.Errorf("failed to decode analysis: %w", err)
	}

	sentiment := payload.Sentiment
	if sentiment > 1 {
		sentiment = 1
	}
	if sentiment < -1 {
		sentiment = -1
	}

	return models.Analysis{
		Sentiment: sentiment,
		Urgency:   models.ParseUrgency(payload.Urgency),
		Intent:    payload.Intent,
		Complex:   payload.Complex,
		Escalate:  payload.Escalate,
	}, nil
}
