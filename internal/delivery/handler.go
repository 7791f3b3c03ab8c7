package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fixwork/missedcall/internal/pkg/httputil"
)

// Handler handles HTTP requests for queue administration.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new delivery handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes registers queue administration routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Get("/stats", h.GetQueueStats)
		r.Get("/platforms", h.GetPlatformStats)
		r.Post("/clear", h.ClearQueues)
		r.Delete("/messages/{id}", h.CancelMessage)
		r.Post("/messages/{id}/retry", h.RetryMessage)
	})
}

// GetQueueStats handles GET /queue/stats.
func (h *Handler) GetQueueStats(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, h.manager.QueueStats())
}

// GetPlatformStats handles GET /queue/platforms.
func (h *Handler) GetPlatformStats(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, h.manager.MessageStats())
}

// ClearQueues handles POST /queue/clear.
func (h *Handler) ClearQueues(w http.ResponseWriter, r *http.Request) {
	h.manager.ClearAllQueues(r.Context())
	httputil.JSON(w, http.StatusOK, h.manager.QueueStats())
}

// CancelMessage handles DELETE /queue/messages/{id}. Only pending
// messages can be cancelled.
func (h *Handler) CancelMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.manager.CancelMessage(r.Context(), id) {
		httputil.Error(w, http.StatusNotFound, "message is not pending")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled"})
}

// RetryMessage handles POST /queue/messages/{id}/retry. Only failed
// messages can be requeued.
func (h *Handler) RetryMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.manager.RetryMessage(r.Context(), id) {
		httputil.Error(w, http.StatusNotFound, "message is not failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"id": id, "status": "pending"})
}
