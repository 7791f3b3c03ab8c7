package responder

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fixwork/missedcall/internal/domain"
	"github.com/fixwork/missedcall/internal/pkg/httputil"
)

// Handler handles HTTP requests for the responder module.
type Handler struct {
	responder *Responder
	validator *validator.Validate
}

// NewHandler creates a new responder handler.
func NewHandler(responder *Responder) *Handler {
	return &Handler{
		responder: responder,
		validator: validator.New(),
	}
}

// RegisterRoutes registers responder routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/calls/missed", h.MissedCall)
	r.Get("/mode", h.GetMode)
	r.Put("/mode", h.SetMode)
}

// ContactPayload is the optional contact block of a call event.
type ContactPayload struct {
	Name              string `json:"name"`
	Category          string `json:"category" validate:"omitempty,oneof=existing_customer new_prospect supplier emergency personal blacklisted"`
	Priority          string `json:"priority" validate:"omitempty,oneof=low medium high vip"`
	PreferredPlatform string `json:"preferred_platform" validate:"omitempty,oneof=telegram whatsapp sms"`
}

// MissedCallRequest represents request body for reporting a missed call.
type MissedCallRequest struct {
	ID           string          `json:"id"`
	CallerNumber string          `json:"caller_number" validate:"required"`
	CallerName   string          `json:"caller_name"`
	ReceivedAt   *time.Time      `json:"received_at"`
	Note         string          `json:"note"`
	Contact      *ContactPayload `json:"contact"`
}

// SetModeRequest represents request body for switching the app mode.
type SetModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

// MissedCall handles POST /calls/missed.
func (h *Handler) MissedCall(w http.ResponseWriter, r *http.Request) {
	var req MissedCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	event := &domain.CallEvent{
		ID:           req.ID,
		CallerNumber: req.CallerNumber,
		CallerName:   req.CallerName,
		ReceivedAt:   time.Now(),
		Note:         req.Note,
	}
	if req.ReceivedAt != nil {
		event.ReceivedAt = *req.ReceivedAt
	}
	if req.Contact != nil {
		event.Contact = &domain.Contact{
			Name:              req.Contact.Name,
			Category:          domain.ContactCategory(req.Contact.Category),
			Priority:          domain.ContactPriority(req.Contact.Priority),
			PreferredPlatform: domain.Platform(req.Contact.PreferredPlatform),
		}
	}

	result := h.responder.HandleCallEvent(r.Context(), event)

	status := http.StatusAccepted
	if !result.Queued {
		status = http.StatusOK
	}
	httputil.JSON(w, status, result)
}

// GetMode handles GET /mode.
func (h *Handler) GetMode(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"mode": string(h.responder.Mode()),
	})
}

// SetMode handles PUT /mode.
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if !h.responder.SetMode(domain.AppMode(req.Mode)) {
		httputil.Error(w, http.StatusBadRequest, "unknown mode")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}
