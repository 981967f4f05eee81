package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/dispatch"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/notify"
	"github.com/Shivanand-hulikatti/event-admission/internal/passport"
	"github.com/Shivanand-hulikatti/event-admission/internal/qrcode"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-admission/internal/service"
)

type testServer struct {
	*httptest.Server
	store  *memory.Store
	runner *dispatch.Runner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := test.NewNullLogger()
	clk := clock.NewStepping(time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC), time.Millisecond)

	mem := memory.New()
	mem.PutEvent(model.Event{ID: "ev-1", Title: "GoLab", Capacity: 1, Status: model.EventPublished, WaitlistEnabled: true})
	mem.PutParticipant(model.Participant{ID: "alice", Name: "Alice", Email: "alice@example.com"})

	store := service.Store{Tx: mem, Events: mem.Events(), Registrations: mem.Registrations(), Waitlist: mem.Waitlist()}
	runner := dispatch.NewRunner(2, 64, log)
	codes := qrcode.New(64)
	notifier := notify.NewNotifier(notify.Deps{
		Sender:    notify.NewLogSender(log),
		Runner:    runner,
		Events:    mem.Events(),
		Directory: mem.Participants(),
		Codes:     codes,
		Clock:     clk,
		Timeout:   time.Second,
		Log:       log,
	})
	policy := service.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, Timeout: time.Second}
	pp := passport.NewService(mem.Badges(), mem.Events(), clk, log)
	promotion := service.NewPromotionService(store, notifier, clk, log)

	h := NewAdmissionHandler(Services{
		Admission:    service.NewAdmissionService(store, notifier, clk, log),
		Promotion:    promotion,
		Cancellation: service.NewCancellationService(store, notifier, service.NewPromotionTrigger(promotion, runner, policy, log), clk, log),
		CheckIn:      service.NewCheckInService(mem.Registrations(), notifier, pp, runner, policy, clk, log),
		Query:        service.NewQueryService(store, codes),
		Passport:     pp,
	}, log)

	srv := httptest.NewServer(NewRouter(h, log))
	t.Cleanup(func() {
		srv.Close()
		_ = runner.Close(context.Background())
	})
	return &testServer{Server: srv, store: mem, runner: runner}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestRegisterFlow(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])
	regID := body["registration"].(map[string]any)["id"].(string)

	resp, body = s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"bob"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "waitlisted", body["status"])
	assert.EqualValues(t, 1, body["position"])

	resp, body = s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"alice"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "already registered")

	resp, body = s.do(t, http.MethodGet, "/registrations/"+regID+"/qr", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["qr_code_data"], "data:image/png;base64,")

	resp, body = s.do(t, http.MethodDelete, "/registrations/"+regID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled_by_user", body["status"])

	require.Eventually(t, func() bool {
		reg, err := s.store.Registrations().FindActive(context.Background(), "bob", "ev-1")
		return err == nil && reg != nil
	}, time.Second, 5*time.Millisecond)

	bob, err := s.store.Registrations().FindActive(context.Background(), "bob", "ev-1")
	require.NoError(t, err)

	resp, body = s.do(t, http.MethodPost, "/registrations/"+bob.ID+"/check-in", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attended", body["status"])

	require.Eventually(t, func() bool {
		badges, err := s.store.Badges().ListByParticipant(context.Background(), "bob")
		return err == nil && len(badges) == 1
	}, time.Second, 5*time.Millisecond)

	resp, body = s.do(t, http.MethodGet, "/passport/bob", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["badges"], 1)
}

func TestParticipantWaitlistAndWithdraw(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"alice"}`)
	resp, body := s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"bob"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	entryID := body["waitlist_entry"].(map[string]any)["id"].(string)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/participants/bob/waitlist", nil)
	require.NoError(t, err)
	raw, err := s.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
	var entries []model.QueuedEntry
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, entryID, entries[0].ID)
	assert.Equal(t, 1, entries[0].Position)

	resp, _ = s.do(t, http.MethodDelete, "/waitlist/"+entryID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(t, http.MethodDelete, "/waitlist/"+entryID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "waitlist entry not found")

	queue, err := s.store.Waitlist().ListByEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	s.store.PutEvent(model.Event{ID: "draft", Capacity: 1, Status: model.EventDraft})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown event", http.MethodPost, "/events/nope/register", `{"participant_id":"x"}`, http.StatusNotFound},
		{"not published", http.MethodPost, "/events/draft/register", `{"participant_id":"x"}`, http.StatusConflict},
		{"missing participant", http.MethodPost, "/events/ev-1/register", `{}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/events/ev-1/register", `{"participant":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/events/ev-1/register", `{"user":"x"}`, http.StatusBadRequest},
		{"unknown registration", http.MethodGet, "/registrations/nope", "", http.StatusNotFound},
		{"check-in unknown", http.MethodPost, "/registrations/nope/check-in", "", http.StatusNotFound},
		{"bad initiator", http.MethodDelete, "/registrations/nope?initiator=robot", "", http.StatusBadRequest},
		{"event not cancelled", http.MethodPost, "/events/ev-1/cancellation", "", http.StatusConflict},
		{"badge for unknown event", http.MethodPost, "/passport/internal/check-in", `{"participantId":"a","eventId":"nope"}`, http.StatusNotFound},
		{"badge without ids", http.MethodPost, "/passport/internal/check-in", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPromoteAndEventCancellation(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/events/ev-1/promote", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["noop"])

	s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"alice"}`)
	s.do(t, http.MethodPost, "/events/ev-1/register", `{"participant_id":"bob"}`)

	require.NoError(t, s.store.SetEventStatus("ev-1", model.EventCancelled))
	resp, body = s.do(t, http.MethodPost, "/events/ev-1/cancellation", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["cancelled_registrations"], 1)
	assert.EqualValues(t, 1, body["waitlist_cleared"])
}

func TestIssueBadgeIdempotent(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/passport/internal/check-in", `{"participantId":"alice","eventId":"ev-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, _ = s.do(t, http.MethodPost, "/passport/internal/check-in", `{"participantId":"alice","eventId":"ev-1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = s.do(t, http.MethodOptions, "/events/ev-1/register", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
