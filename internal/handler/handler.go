// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/service"
)

// retryAfterSeconds is advertised when the admission lock times out.
const retryAfterSeconds = 1

// ReservationHandler holds all HTTP handlers for the reservation API.
type ReservationHandler struct {
	svc    *service.ReservationService
	logger *slog.Logger
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc *service.ReservationService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, logger: logger}
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
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDecodeError reports a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, calendar.ErrInvalidFormat) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

// writeServiceError maps the domain error taxonomy onto status codes. Anything
// outside the taxonomy is logged and reported as a generic server error.
func (h *ReservationHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNoAvailability):
		writeError(w, http.StatusBadRequest, model.ErrNoAvailability.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "the reservation was modified by another request, fetch it and retry")
	case errors.Is(err, model.ErrLockTimeout):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusServiceUnavailable, "the campsite is busy, please retry")
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*calendar.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CheckAvailability handles GET /api/v1/availabilities
// Returns the free days between startDate and endDate.
func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "startDate")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "endDate")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates, err := h.svc.FindAvailableDates(r.Context(), start, end)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dates)
}

// ListReservations handles GET /api/v1/reservations
// Returns every reservation including cancelled ones, with versions.
func (h *ReservationHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if reservations == nil {
		reservations = []model.Reservation{}
	}

	writeJSON(w, http.StatusOK, reservations)
}

// GetReservation handles GET /api/v1/reservations/{id}
func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// CreateReservation handles POST /api/v1/reservations
// Books the campsite and returns the new reservation id.
func (h *ReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	id, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MessageResponse{
		ID:      id,
		Message: "Successfully created reservation with ID : " + id,
	})
}

// UpdateReservation handles PATCH /api/v1/reservations/{id}
// Applies the fields present in the body and returns the updated reservation.
func (h *ReservationHandler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.UpdateReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	res, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// CancelReservation handles DELETE /api/v1/reservations/{id}
func (h *ReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{
		ID:      id,
		Message: "Successfully cancelled reservation with ID : " + id,
	})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
