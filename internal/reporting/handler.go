// internal/reporting/handler.go
package reporting

import (
	"net/http"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/eventlog"
	"shelfkeeper/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type popularBooksResponse struct {
	PopularBooks []PopularBook `json:"popular_books"`
}

type overdueResponse struct {
	OverdueBooks []OverdueEntry `json:"overdue_books"`
}

type reservationsResponse struct {
	Reservations []ReservationView `json:"reservations"`
}

type eventsResponse struct {
	Events []eventlog.Event `json:"events"`
}

// HandlePopularBooks serves GET /api/admin/reports/popular-books.
func (h *Handler) HandlePopularBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.PopularBooks(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, popularBooksResponse{PopularBooks: books})
}

// HandleOverdueBooks serves the overdue report. It flags newly overdue
// borrowings as a side effect.
func (h *Handler) HandleOverdueBooks(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.OverdueReport(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, overdueResponse{OverdueBooks: entries})
}

// HandleUserHistory serves GET /api/admin/reports/user-history/{id}.
func (h *Handler) HandleUserHistory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	history, err := h.service.UserHistory(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, history)
}

// HandleProfile serves GET /api/auth/profile: the caller's own history.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	history, err := h.service.UserHistory(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, history)
}

// HandleAllReservations serves GET /api/admin/reservations.
func (h *Handler) HandleAllReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.AllReservations(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reservationsResponse{Reservations: list})
}

// HandleBookEvents serves GET /api/admin/books/{id}/events.
func (h *Handler) HandleBookEvents(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	events, err := h.service.BookEvents(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, eventsResponse{Events: events})
}
