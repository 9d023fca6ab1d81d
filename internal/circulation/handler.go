// internal/circulation/handler.go
package circulation

import (
	"net/http"

	"github.com/google/uuid"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type createReservationRequest struct {
	BookID uuid.UUID `json:"book_id" validate:"required"`
}

type createBorrowingRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	BookID uuid.UUID `json:"book_id" validate:"required"`
}

type reservationsResponse struct {
	Reservations []*Reservation `json:"reservations"`
}

type borrowingsResponse struct {
	Borrowings []*Borrowing `json:"borrowings"`
}

type expireResponse struct {
	Expired int `json:"expired"`
}

// HandleCreateReservation serves POST /api/reservations.
func (h *Handler) HandleCreateReservation(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req createReservationRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	res, err := h.service.CreateReservation(r.Context(), p.UserID, req.BookID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

// HandleListReservations serves GET /api/reservations.
func (h *Handler) HandleListReservations(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	list, err := h.service.ListReservations(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reservationsResponse{Reservations: list})
}

// HandleCancelReservation serves DELETE /api/reservations/{id}.
func (h *Handler) HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	res, err := h.service.CancelReservation(r.Context(), p.UserID, id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleCreateBorrowing serves POST /api/borrowings.
func (h *Handler) HandleCreateBorrowing(w http.ResponseWriter, r *http.Request) {
	var req createBorrowingRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	b, err := h.service.CreateBorrowing(r.Context(), req.UserID, req.BookID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

// HandleListBorrowings serves GET /api/borrowings. Admins see every
// borrowing, members only their own.
func (h *Handler) HandleListBorrowings(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalOf(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var filter *uuid.UUID
	if !p.IsAdmin() {
		filter = &p.UserID
	}
	list, err := h.service.ListBorrowings(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, borrowingsResponse{Borrowings: list})
}

// HandleReturn serves POST /api/borrowings/{id}/return.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	b, err := h.service.ReturnBorrowing(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// HandleCheckDueDates serves POST /api/admin/check-due-dates.
func (h *Handler) HandleCheckDueDates(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SweepDueSoon(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleExpireReservations serves POST /api/admin/expire-reservations.
func (h *Handler) HandleExpireReservations(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ExpireReservations(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, expireResponse{Expired: n})
}
