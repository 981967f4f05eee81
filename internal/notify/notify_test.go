package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/config"
	"github.com/Shivanand-hulikatti/event-admission/internal/dispatch"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/qrcode"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository/memory"
)

var start = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func newNotifier(t *testing.T, sender Sender) (*Notifier, *dispatch.Runner, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	store := memory.New()
	store.PutEvent(model.Event{ID: "ev-1", Title: "Go Meetup", Location: "Berlin", StartTime: start, Capacity: 10, Status: model.EventPublished})
	store.PutParticipant(model.Participant{ID: "p-1", Name: "Ada", Email: "ada@example.com"})
	store.PutParticipant(model.Participant{ID: "p-2", Name: "Linus", Email: "linus@example.com"})

	runner := dispatch.NewRunner(1, 16, log)
	n := NewNotifier(Deps{
		Sender:    sender,
		Runner:    runner,
		Events:    store.Events(),
		Directory: store.Participants(),
		Codes:     qrcode.New(64),
		Clock:     clock.NewStepping(start, time.Second),
		Timeout:   time.Second,
		Log:       log,
	})
	return n, runner, hook
}

func TestNotifierBuildsMessages(t *testing.T) {
	sender := &recordingSender{}
	n, runner, _ := newNotifier(t, sender)

	reg := model.Registration{ID: "r-1", ParticipantID: "p-1", EventID: "ev-1", Status: model.StatusConfirmed}
	n.RegistrationConfirmed(reg)
	n.WaitlistConfirmed(model.WaitlistEntry{ID: "w-1", ParticipantID: "p-2", EventID: "ev-1"}, 3)
	n.EventCancelled("ev-1", []string{"p-1", "p-2", "p-unknown"})
	require.NoError(t, runner.Close(context.Background()))

	msgs := sender.sent()
	require.Len(t, msgs, 3)

	confirmed := msgs[0]
	assert.Equal(t, KindRegistrationConfirmed, confirmed.Type)
	assert.Equal(t, "registration-confirmed:r-1", confirmed.DedupeKey)
	assert.Equal(t, "Go Meetup", confirmed.EventTitle)
	assert.Equal(t, "Berlin", confirmed.EventLocation)
	require.NotNil(t, confirmed.EventStartTime)
	assert.True(t, confirmed.EventStartTime.Equal(start))
	assert.Equal(t, []Recipient{{ParticipantID: "p-1", Name: "Ada", Email: "ada@example.com"}}, confirmed.Recipients)
	assert.Contains(t, confirmed.QRCodeData, "data:image/png;base64,")

	waitlisted := msgs[1]
	assert.Equal(t, KindWaitlistConfirmed, waitlisted.Type)
	assert.Equal(t, 3, waitlisted.Position)
	assert.Empty(t, waitlisted.QRCodeData)

	cancelled := msgs[2]
	assert.Equal(t, "event-cancelled:ev-1", cancelled.DedupeKey)
	require.Len(t, cancelled.Recipients, 3)
	assert.Equal(t, Recipient{ParticipantID: "p-unknown"}, cancelled.Recipients[2])
}

func TestNotifierDropsFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	n, runner, hook := newNotifier(t, sender)

	n.CheckInSuccess(model.Registration{ID: "r-1", ParticipantID: "p-1", EventID: "ev-1"})
	require.NoError(t, runner.Close(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "notification dropped", entry.Message)
	assert.ErrorContains(t, entry.Data[logrus.ErrorKey].(error), "collaborator unavailable")
}

func TestHTTPSender(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		got     Message
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL+"/", srv.Client())
	msg := Message{Type: KindWaitlistSuccess, DedupeKey: "waitlist-success:r-9", EventID: "ev-1", RegistrationID: "r-9", SentAt: start}
	require.NoError(t, s.Send(context.Background(), msg))

	assert.Equal(t, "/api/notifications/waitlist-success", gotPath)
	assert.Equal(t, "waitlist-success:r-9", gotKey)
	assert.Equal(t, "r-9", got.RegistrationID)
	assert.NoError(t, s.Close())
}

func TestHTTPSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, srv.Client()).Send(context.Background(), Message{Type: KindCheckInSuccess})
	assert.ErrorContains(t, err, "503")
}

func TestNewSender(t *testing.T) {
	log, _ := test.NewNullLogger()

	s, err := NewSender(config.NotifyConfig{Driver: "log"}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	s, err = NewSender(config.NotifyConfig{Driver: "http", HTTP: config.HTTPConfig{BaseURL: "http://notify"}}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSender{}, s)

	s, err = NewSender(config.NotifyConfig{Driver: "kafka", Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "n"}}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &KafkaSender{}, s)
	assert.NoError(t, s.Close())

	s, err = NewSender(config.NotifyConfig{Driver: "redis", Redis: config.RedisConfig{Addr: "localhost:6379", List: "n"}}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &RedisSender{}, s)
	assert.NoError(t, s.Close())

	_, err = NewSender(config.NotifyConfig{Driver: "smtp"}, time.Second, log)
	assert.Error(t, err)
}
