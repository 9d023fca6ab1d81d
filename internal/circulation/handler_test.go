package circulation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/httpx"
)

func newTestRouter(svc Service) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/reservations", h.HandleCreateReservation)
	r.Get("/reservations", h.HandleListReservations)
	r.Delete("/reservations/{id}", h.HandleCancelReservation)
	r.Post("/borrowings", h.HandleCreateBorrowing)
	r.Get("/borrowings", h.HandleListBorrowings)
	r.Post("/borrowings/{id}/return", h.HandleReturn)
	r.Post("/admin/check-due-dates", h.HandleCheckDueDates)
	r.Post("/admin/expire-reservations", h.HandleExpireReservations)
	return r
}

func as(req *http.Request, userID uuid.UUID, role auth.Role) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: userID, Role: role}))
}

func TestHandleReservationLifecycle(t *testing.T) {
	svc, store, _ := newTestService()
	router := newTestRouter(svc)
	bookID := store.addBook("Dune", 1, 1)
	userID := store.addUser()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/reservations",
		strings.NewReader(`{"book_id":"`+bookID.String()+`"}`)), userID, auth.RoleMember))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res Reservation
	require.NoError(t, httpx.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, ReservationActive, res.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/reservations",
		strings.NewReader(`{"book_id":"`+bookID.String()+`"}`)), userID, auth.RoleMember))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/reservations",
		strings.NewReader(`{"book_id":"`+bookID.String()+`"}`)), store.addUser(), auth.RoleMember))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no copies left")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/reservations/"+res.ID.String(), nil), uuid.New(), auth.RoleMember))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodGet, "/reservations", nil), userID, auth.RoleMember))
	require.Equal(t, http.StatusOK, rec.Code)
	var list reservationsResponse
	require.NoError(t, httpx.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Reservations, 1)
	assert.Equal(t, res.ID, list.Reservations[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/reservations/"+res.ID.String(), nil), userID, auth.RoleMember))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

func TestHandleCreateReservation_Unauthenticated(t *testing.T) {
	svc, _, _ := newTestService()
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleBorrowAndReturn(t *testing.T) {
	svc, store, _ := newTestService()
	router := newTestRouter(svc)
	admin := uuid.New()
	bookID := store.addBook("Emma", 2, 2)
	member := store.addUser()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/borrowings",
		strings.NewReader(`{"user_id":"`+member.String()+`","book_id":"`+bookID.String()+`"}`)), admin, auth.RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var b Borrowing
	require.NoError(t, httpx.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, b.BorrowedAt.Add(LoanPeriod), b.DueDate)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/borrowings",
		strings.NewReader(`{"book_id":"`+bookID.String()+`"}`)), admin, auth.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "user_id is required")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodGet, "/borrowings", nil), uuid.New(), auth.RoleMember))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"borrowings":[]}`, rec.Body.String(), "members only see their own")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodGet, "/borrowings", nil), admin, auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	var all borrowingsResponse
	require.NoError(t, httpx.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all.Borrowings, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/borrowings/"+b.ID.String()+"/return", nil), admin, auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/borrowings/"+b.ID.String()+"/return", nil), admin, auth.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "already returned")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, as(httptest.NewRequest(http.MethodPost, "/borrowings/not-a-uuid/return", nil), admin, auth.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAdminSweeps(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/check-due-dates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications_created":0,"upcoming_due_count":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/expire-reservations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired":0}`, rec.Body.String())
}
