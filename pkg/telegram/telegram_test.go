package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopilot-assistant/pkg/models"
)

type staticOwners map[string]bool

func (o staticOwners) Exists(_ context.Context, ownerID string) bool { return o[ownerID] }

type captureSink struct {
	mu   sync.Mutex
	msgs []models.InboundMessage
	done chan struct{}
	want int
}

func (s *captureSink) Enqueue(_ context.Context, msg models.InboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if len(s.msgs) == s.want {
		close(s.done)
	}
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestSendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottoken-123/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-123", testLogger())
	require.NoError(t, client.SendMessage(context.Background(), "42", "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
}

func TestSendMessage_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-123", testLogger())
	err := client.SendMessage(context.Background(), "42", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestPoller_MapsPrivateTextMessages(t *testing.T) {
	first := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken-123/getUpdates" {
			http.NotFound(w, r)
			return
		}
		if first {
			first = false
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":1,"message":{"text":"hello","chat":{"id":100,"type":"private"},"from":{"id":100,"username":"carol","first_name":"Carol"}}},
				{"update_id":2,"message":{"text":"ignored","chat":{"id":-5,"type":"group"},"from":{"id":100}}},
				{"update_id":3,"message":{"text":"/busy","chat":{"id":7,"type":"private"},"from":{"id":7,"username":"alice","first_name":"Alice","last_name":"Smith"}}}
			]}`))
			return
		}
		// Block subsequent polls until the client goes away.
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := &captureSink{done: make(chan struct{}), want: 2}
	client := NewClient(srv.URL, "token-123", testLogger())
	poller := NewPoller(client, staticOwners{"7": true}, sink, testLogger(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	select {
	case <-sink.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound messages")
	}
	cancel()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.msgs, 2)

	contact := sink.msgs[0]
	assert.Equal(t, "100", contact.ContactID)
	assert.Equal(t, "carol", contact.Username)
	assert.Equal(t, "Carol", contact.DisplayName)
	assert.False(t, contact.SenderIsOwner)

	owner := sink.msgs[1]
	assert.Equal(t, "7", owner.ContactID)
	assert.Equal(t, "Alice Smith", owner.DisplayName)
	assert.True(t, owner.SenderIsOwner)
}
