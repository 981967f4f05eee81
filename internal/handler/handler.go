// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/passport"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
	"github.com/Shivanand-hulikatti/event-admission/internal/service"
)

// Services bundles what the handlers call into.
type Services struct {
	Admission    *service.AdmissionService
	Promotion    *service.PromotionService
	Cancellation *service.CancellationService
	CheckIn      *service.CheckInService
	Query        *service.QueryService
	Passport     *passport.Service
}

// AdmissionHandler holds all HTTP handlers for the admission API.
type AdmissionHandler struct {
	svc Services
	log logrus.FieldLogger
}

// NewAdmissionHandler constructs an AdmissionHandler.
func NewAdmissionHandler(svc Services, log logrus.FieldLogger) *AdmissionHandler {
	return &AdmissionHandler{svc: svc, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// fail maps an error class onto a status code. Unclassified errors are logged
// and reported without detail.
func (h *AdmissionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrValidation):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ─── Admission ────────────────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// 201 with the registration when a seat was taken, 202 with the waitlist
// position otherwise.
func (h *AdmissionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Admission.Register(r.Context(), chi.URLParam(r, "id"), req.ParticipantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Status == model.AdmissionWaitlisted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// Promote handles POST /events/{id}/promote
func (h *AdmissionHandler) Promote(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Promotion.Promote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelEvent handles POST /events/{id}/cancellation
func (h *AdmissionHandler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Cancellation.CancelEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListEventRegistrations handles GET /events/{id}/registrations
func (h *AdmissionHandler) ListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.Query.ListEventRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// ListEventWaitlist handles GET /events/{id}/waitlist
func (h *AdmissionHandler) ListEventWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Query.ListEventWaitlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.QueuedEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ─── Registrations ────────────────────────────────────────────────────────────

// GetRegistration handles GET /registrations/{id}
func (h *AdmissionHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Query.GetRegistration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CheckInCode handles GET /registrations/{id}/qr
func (h *AdmissionHandler) CheckInCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.svc.Query.CheckInCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

// CancelRegistration handles DELETE /registrations/{id}
// ?initiator=organizer marks the cancellation as organizer-initiated.
func (h *AdmissionHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	initiator := model.InitiatorParticipant
	if v := r.URL.Query().Get("initiator"); v != "" {
		initiator = model.Initiator(v)
	}

	reg, err := h.svc.Cancellation.Cancel(r.Context(), chi.URLParam(r, "id"), initiator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CheckIn handles POST /registrations/{id}/check-in
func (h *AdmissionHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.CheckIn.CheckIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ListParticipantRegistrations handles GET /participants/{id}/registrations
func (h *AdmissionHandler) ListParticipantRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.Query.ListParticipantRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// ListParticipantWaitlist handles GET /participants/{id}/waitlist
func (h *AdmissionHandler) ListParticipantWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Query.ListParticipantWaitlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.QueuedEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ─── Waitlist ─────────────────────────────────────────────────────────────────

// WithdrawWaitlist handles DELETE /waitlist/{id}
func (h *AdmissionHandler) WithdrawWaitlist(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Cancellation.Withdraw(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Passport ─────────────────────────────────────────────────────────────────

// GetPassport handles GET /passport/{participantId}
func (h *AdmissionHandler) GetPassport(w http.ResponseWriter, r *http.Request) {
	pp, err := h.svc.Passport.Get(r.Context(), chi.URLParam(r, "participantId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pp)
}

type badgeResponse struct {
	Success bool        `json:"success"`
	Badge   model.Badge `json:"badge"`
}

// IssueBadge handles POST /passport/internal/check-in
// 201 when the badge is new, 200 when the participant already had it.
func (h *AdmissionHandler) IssueBadge(w http.ResponseWriter, r *http.Request) {
	var req model.BadgeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	badge, created, err := h.svc.Passport.Issue(r.Context(), req.ParticipantID, req.EventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, badgeResponse{Success: true, Badge: badge})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
