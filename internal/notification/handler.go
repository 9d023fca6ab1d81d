// internal/notification/handler.go
package notification

import (
	"net/http"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/httpx"
)

type listResponse struct {
	Notifications []*Notification `json:"notifications"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// HandleList serves GET /api/notifications.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	list, err := h.service.List(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Notifications: list})
}

// HandleMarkRead serves POST /api/notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	n, err := h.service.MarkRead(r.Context(), p.UserID, id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, n)
}
