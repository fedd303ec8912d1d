package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swiftloan/api/internal/domain/ticket"
	"github.com/swiftloan/api/internal/http/handlers"
)

type fakeSupportRepo struct {
	tickets map[string]ticket.Ticket // keyed by id, value carries owner
}

func (f *fakeSupportRepo) Create(ctx context.Context, userID string, req ticket.CreateTicketRequest) (ticket.Ticket, error) {
	return ticket.NewFromCreateRequest(userID, req), nil
}

func (f *fakeSupportRepo) ListByUser(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	out := []ticket.Ticket{}
	for _, t := range f.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSupportRepo) GetForUser(ctx context.Context, id, userID string) (ticket.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok || t.UserID != userID {
		return ticket.Ticket{}, ticket.ErrNotFound
	}
	return t, nil
}

func supportRouter(repo *fakeSupportRepo, userID string) *gin.Engine {
	r := gin.New()
	h := handlers.NewSupportHandler(repo)

	g := r.Group("/api/support")
	g.Use(identity(userID, "user"))
	g.POST("/create", h.Create)
	g.GET("/tickets", h.ListMine)
	g.GET("/tickets/:id", h.GetMine)

	return r
}

func TestCreateTicket(t *testing.T) {
	r := supportRouter(&fakeSupportRepo{}, uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/api/support/create",
		jsonBody(map[string]string{"subject": "limits", "message": "raise my limit please"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateTicketRejectsMissingSubject(t *testing.T) {
	r := supportRouter(&fakeSupportRepo{}, uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/api/support/create",
		jsonBody(map[string]string{"message": "no subject"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetMineHidesForeignTickets(t *testing.T) {
	owner := uuid.NewString()
	stranger := uuid.NewString()
	id := uuid.NewString()

	repo := &fakeSupportRepo{tickets: map[string]ticket.Ticket{
		id: {ID: id, UserID: owner, Subject: "mine", Status: ticket.StatusOpen},
	}}

	// owner sees it
	r := supportRouter(repo, owner)
	req := httptest.NewRequest(http.MethodGet, "/api/support/tickets/"+id, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("owner: status = %d", w.Code)
	}

	// a stranger gets the same 404 a missing ticket would produce
	r = supportRouter(repo, stranger)
	req = httptest.NewRequest(http.MethodGet, "/api/support/tickets/"+id, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("stranger: status = %d, want 404", w.Code)
	}
}
