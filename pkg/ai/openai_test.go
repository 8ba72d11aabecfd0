package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/models"
)

func TestDecodeAnalysis(t *testing.T) {
	analysis, err := DecodeAnalysis(`{"sentiment_score": -0.7, "urgency": "HIGH", "intent": "refund", "complex": true, "escalate": false}`)
	require.NoError(t, err)
	assert.Equal(t, -0.7, analysis.Sentiment)
	assert.Equal(t, models.UrgencyHigh, analysis.Urgency)
	assert.Equal(t, "refund", analysis.Intent)
	assert.True(t, analysis.Complex)
	assert.False(t, analysis.Escalate)
}

func TestDecodeAnalysis_ClampsAndNormalizes(t *testing.T) {
	analysis, err := DecodeAnalysis(`{"sentiment_score": -3.5, "urgency": "whatever"}`)
	require.NoError(t, err)
	assert.Equal(t, -1.0, analysis.Sentiment)
	assert.Equal(t, models.UrgencyLow, analysis.Urgency)
}

func TestDecodeAnalysis_BadJSON(t *testing.T) {
	_, err := DecodeAnalysis("not json")
	assert.Error(t, err)
}

func TestBoundHistory(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "1"},
		{Role: models.RoleAssistant, Content: "2"},
		{Role: models.RoleUser, Content: "3"},
	}

	assert.Len(t, BoundHistory(history, 2), 2)
	assert.Equal(t, "2", BoundHistory(history, 2)[0].Content)
	assert.Len(t, BoundHistory(history, 5), 3)
	assert.Len(t, BoundHistory(history, 0), 3)
}

func TestOpenAI_GenerateReply(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"On it."}}]}`))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	client := NewOpenAI(srv.URL, "test-key", "gpt-4", 2, logger, metrics.NewMetricsWith(prometheus.NewRegistry()))

	history := []models.Message{
		{Role: models.RoleUser, Content: "old turn"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	profile := models.OwnerProfile{DisplayName: "Alice", FAQInfo: "office hours 9-5"}

	reply, err := client.GenerateReply(context.Background(), history, profile)
	require.NoError(t, err)
	assert.Equal(t, "On it.", reply)

	// system prompt + the last Window turns only
	require.Len(t, gotReq.Messages, 3)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[0].Content, "Alice")
	assert.Contains(t, gotReq.Messages[0].Content, "office hours 9-5")
	assert.Equal(t, "hi", gotReq.Messages[1].Content)
}

func TestOpenAI_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	client := NewOpenAI(srv.URL, "", "gpt-4", 5, logger, metrics.NewMetricsWith(prometheus.NewRegistry()))

	_, err := client.Summarize(context.Background(), "user: hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
