package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/models"
)

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *logrus.Logger
}

func NewClient(baseURL, token string, logger *logrus.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		http:   &http.Client{Timeout: 65 * time.Second},
		logger: logger,
	}
}

// SendMessage delivers text to a chat. Best effort: the caller logs
// failures, nothing is retried here.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": recipientID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode sendMessage payload: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := c.call(ctx, "sendMessage", payload, &result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("sendMessage rejected: %s", result.Description)
	}
	return nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		} `json:"chat"`
		From struct {
			ID        int64  `json:"id"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"from"`
	} `json:"message"`
}

// getUpdates long-polls for new updates past offset.
func (c *Client) getUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]update, error) {
	payload, err := json.Marshal(map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode getUpdates payload: %w", err)
	}

	var result struct {
		OK          bool     `json:"ok"`
		Description string   `json:"description"`
		Result      []update `json:"result"`
	}
	if err := c.call(ctx, "getUpdates", payload, &result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates rejected: %s", result.Description)
	}
	return result.Result, nil
}

func (c *Client) call(ctx context.Context, method string, payload []byte, out any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// OwnerChecker reports whether a sender identity belongs to a configured
// owner.
type OwnerChecker interface {
	Exists(ctx context.Context, ownerID string) bool
}

// Sink receives mapped inbound events, normally the engine dispatcher.
type Sink interface {
	Enqueue(ctx context.Context, msg models.InboundMessage) error
}

// Poller long-polls the Bot API and feeds private-chat text messages into
// the sink.
type Poller struct {
	client      *Client
	owners      OwnerChecker
	sink        Sink
	logger      *logrus.Logger
	pollTimeout int
}

func NewPoller(client *Client, owners OwnerChecker, sink Sink, logger *logrus.Logger, pollTimeoutSeconds int) *Poller {
	if pollTimeoutSeconds <= 0 {
		pollTimeoutSeconds = 30
	}
	return &Poller{
		client:      client,
		owners:      owners,
		sink:        sink,
		logger:      logger,
		pollTimeout: pollTimeoutSeconds,
	}
}

func (p *Poller) Run(ctx context.Context) {
	var offset int64

	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := p.client.getUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithError(err).Error("Failed to poll for updates")
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			msg, ok := p.mapUpdate(ctx, u)
			if !ok {
				continue
			}
			if err := p.sink.Enqueue(ctx, msg); err != nil {
				p.logger.WithError(err).WithField("contact_id", msg.ContactID).Error("Failed to enqueue inbound message")
			}
		}
	}
}

func (p *Poller) mapUpdate(ctx context.Context, u update) (models.InboundMessage, bool) {
	if u.Message == nil || u.Message.Text == "" || u.Message.Chat.Type != "private" {
		return models.InboundMessage{}, false
	}

	senderID := strconv.FormatInt(u.Message.From.ID, 10)
	displayName := strings.TrimSpace(u.Message.From.FirstName + " " + u.Message.From.LastName)

	return models.InboundMessage{
		ContactID:     senderID,
		Username:      u.Message.From.Username,
		DisplayName:   displayName,
		Text:          u.Message.Text,
		SenderIsOwner: p.owners.Exists(ctx, senderID),
		ReceivedAt:    time.Now(),
	}, true
}
