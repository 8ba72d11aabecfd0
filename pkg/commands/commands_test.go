package commands

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopilot-assistant/pkg/models"
	"autopilot-assistant/pkg/settings"
	"autopilot-assistant/pkg/store"
)

type fakeMessenger struct {
	sent []sentMessage
}

type sentMessage struct {
	To   string
	Text string
}

func (f *fakeMessenger) SendMessage(_ context.Context, recipientID, text string) error {
	f.sent = append(f.sent, sentMessage{To: recipientID, Text: text})
	return nil
}

func (f *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func setup(t *testing.T) (*Router, *store.MemorySettings, *settings.Service, *fakeMessenger) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	st := store.NewMemorySettings()
	svc := settings.NewService(st, logger)
	messenger := &fakeMessenger{}
	return NewRouter(svc, messenger, logger), st, svc, messenger
}

func ownerMsg(text string) models.InboundMessage {
	return models.InboundMessage{ContactID: "owner-1", Text: text, SenderIsOwner: true}
}

func TestBusyAndAvailable(t *testing.T) {
	router, _, svc, messenger := setup(t)
	ctx := context.Background()

	router.Handle(ctx, ownerMsg("/busy"))
	assert.Equal(t, "You are now set as busy.", messenger.last(t).Text)
	assert.True(t, svc.Get(ctx, "owner-1").Busy)

	router.Handle(ctx, ownerMsg("/available"))
	assert.Equal(t, "You are now set as available.", messenger.last(t).Text)
	assert.False(t, svc.Get(ctx, "owner-1").Busy)
}

func TestSetThreshold(t *testing.T) {
	router, _, svc, messenger := setup(t)
	ctx := context.Background()

	router.Handle(ctx, ownerMsg("/set_threshold high"))
	assert.Equal(t, "Importance threshold set to High.", messenger.last(t).Text)
	assert.Equal(t, models.ThresholdHigh, svc.Get(ctx, "owner-1").Threshold)

	router.Handle(ctx, ownerMsg("/set_threshold banana"))
	assert.Equal(t, "Invalid: Low, Medium, High", messenger.last(t).Text)
	assert.Equal(t, models.ThresholdHigh, svc.Get(ctx, "owner-1").Threshold)

	router.Handle(ctx, ownerMsg("/set_threshold"))
	assert.Equal(t, "Please provide Low, Medium, or High.", messenger.last(t).Text)
}

func TestSetKeywords(t *testing.T) {
	router, _, svc, messenger := setup(t)
	ctx := context.Background()

	router.Handle(ctx, ownerMsg("/set_keywords urgent, refund , "))
	assert.Equal(t, "Keywords set.", messenger.last(t).Text)
	assert.Equal(t, []string{"urgent", "refund"}, svc.Get(ctx, "owner-1").Keywords)
}

func TestAddSchedule(t *testing.T) {
	router, _, svc, messenger := setup(t)
	ctx := context.Background()

	router.Handle(ctx, ownerMsg("/add_schedule weekdays 09:00 17:00"))
	assert.Equal(t, "Busy schedule added.", messenger.last(t).Text)
	assert.Equal(t, []string{"weekdays 09:00 17:00"}, svc.Get(ctx, "owner-1").Schedules)

	router.Handle(ctx, ownerMsg("/add_schedule nonsense"))
	assert.Contains(t, messenger.last(t).Text, "Usage:")
	assert.Len(t, svc.Get(ctx, "owner-1").Schedules, 1)
}

func TestSetAutoReplyAndProfileFields(t *testing.T) {
	router, _, svc, messenger := setup(t)
	ctx := context.Background()

	router.Handle(ctx, ownerMsg("/set_auto_reply Hi, [User's Name] is away."))
	assert.Equal(t, "Auto-reply message set.", messenger.last(t).Text)

	router.Handle(ctx, ownerMsg("/set_name Alice"))
	router.Handle(ctx, ownerMsg("/set_user_info Office hours 9-5."))

	profile := svc.Get(ctx, "owner-1")
	assert.Equal(t, "Hi, [User's Name] is away.", profile.AutoReply)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, "Office hours 9-5.", profile.FAQInfo)
}

func TestDeactivateFlow(t *testing.T) {
	router, _, svc, messenger := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureOwner(ctx, "owner-1", "alice"))

	router.Handle(ctx, ownerMsg("/deactivate"))
	assert.Contains(t, messenger.last(t).Text, "Reply YES to confirm")

	// Any non-YES reply cancels, even a command.
	router.Handle(ctx, ownerMsg("/busy"))
	assert.Equal(t, "Deactivation cancelled.", messenger.last(t).Text)
	assert.True(t, svc.Exists(ctx, "owner-1"))

	router.Handle(ctx, ownerMsg("/deactivate"))
	router.Handle(ctx, ownerMsg("YES"))
	assert.Equal(t, "Your profile has been deleted. Goodbye!", messenger.last(t).Text)
	assert.False(t, svc.Exists(ctx, "owner-1"))
}

func TestNonCommandTextGetsHint(t *testing.T) {
	router, _, _, messenger := setup(t)

	router.Handle(context.Background(), ownerMsg("hello bot"))
	assert.Contains(t, messenger.last(t).Text, "use commands")
}

func TestWriteFailureIsSurfacedAsRetry(t *testing.T) {
	router, st, _, messenger := setup(t)
	st.FailWrites = true

	router.Handle(context.Background(), ownerMsg("/busy"))
	assert.Equal(t, "Something went wrong saving that. Please try again.", messenger.last(t).Text)
}
