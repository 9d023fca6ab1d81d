// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"shelfkeeper/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type createBookRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Author      string  `json:"author" validate:"required,max=100"`
	Category    string  `json:"category" validate:"max=50"`
	ISBN        *string `json:"isbn" validate:"omitempty,max=20"`
	TotalCopies *int    `json:"total_copies" validate:"omitempty,min=0"`
	Description *string `json:"description"`
}

type updateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Author      *string `json:"author" validate:"omitempty,max=100"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
	ISBN        *string `json:"isbn" validate:"omitempty,max=20"`
	TotalCopies *int    `json:"total_copies" validate:"omitempty,min=0"`
	Description *string `json:"description"`
}

type listBooksResponse struct {
	Books []*Book `json:"books"`
	Total int     `json:"total"`
}

// HandleList serves GET /api/books?search=&category=&author=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.service.ListBooks(r.Context(), Filter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Author:   q.Get("author"),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listBooksResponse{Books: books, Total: len(books)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	total := 1
	if req.TotalCopies != nil {
		total = *req.TotalCopies
	}
	book, err := h.service.AddBook(r.Context(), NewBook{
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		ISBN:        req.ISBN,
		TotalCopies: total,
		Description: req.Description,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req updateBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, BookUpdate(req))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
