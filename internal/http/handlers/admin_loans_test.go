package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/domain/loan"
	"github.com/swiftloan/api/internal/http/handlers"
	"github.com/swiftloan/api/internal/jobs"
)

// fakeTx satisfies pgx.Tx by embedding; only Commit and Rollback are
// exercised by these handlers.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeAdminLoansRepo struct {
	tx       *fakeTx
	listFn   func(ctx context.Context, status loan.Status, query string) ([]loan.Loan, error)
	getFn    func(ctx context.Context, id string) (loan.Loan, error)
	decideFn func(ctx context.Context, id string, status loan.Status) (loan.Loan, error)
}

func (f *fakeAdminLoansRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if f.tx == nil {
		f.tx = &fakeTx{}
	}
	return f.tx, nil
}

func (f *fakeAdminLoansRepo) ListWithApplicants(ctx context.Context, status loan.Status, query string) ([]loan.Loan, error) {
	if f.listFn != nil {
		return f.listFn(ctx, status, query)
	}
	return []loan.Loan{}, nil
}

func (f *fakeAdminLoansRepo) GetWithApplicant(ctx context.Context, id string) (loan.Loan, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return loan.Loan{ID: id}, nil
}

func (f *fakeAdminLoansRepo) DecideTx(ctx context.Context, tx pgx.Tx, id string, status loan.Status) (loan.Loan, error) {
	if f.decideFn != nil {
		return f.decideFn(ctx, id, status)
	}
	return loan.Loan{ID: id, Status: status}, nil
}

type fakeJobsCreator struct {
	created []job.CreateRequest
	err     error
}

func (f *fakeJobsCreator) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	if f.err != nil {
		return job.Job{}, f.err
	}
	f.created = append(f.created, req)
	return job.New(req), nil
}

func adminLoansRouter(repo *fakeAdminLoansRepo, jobsRepo *fakeJobsCreator) *gin.Engine {
	r := gin.New()
	h := handlers.NewAdminLoansHandler(repo, jobsRepo)

	g := r.Group("/api/admin/loans")
	g.Use(identity(uuid.NewString(), "admin"))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Decide)

	return r
}

func decideBody(status string) *bytes.Reader {
	b, _ := json.Marshal(map[string]string{"status": status})
	return bytes.NewReader(b)
}

func TestDecideApprovesAndEnqueuesNotification(t *testing.T) {
	repo := &fakeAdminLoansRepo{}
	jobsRepo := &fakeJobsCreator{}
	r := adminLoansRouter(repo, jobsRepo)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPut, "/api/admin/loans/"+id, decideBody("approved"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !repo.tx.committed {
		t.Fatal("transaction was not committed")
	}
	if len(jobsRepo.created) != 1 {
		t.Fatalf("jobs created = %d, want 1", len(jobsRepo.created))
	}
	if jobsRepo.created[0].Type != jobs.TypeLoanDecision {
		t.Fatalf("job type = %s", jobsRepo.created[0].Type)
	}
	if jobsRepo.created[0].IdempotencyKey == nil || *jobsRepo.created[0].IdempotencyKey != "loan:decision:"+id {
		t.Fatalf("unexpected idempotency key: %v", jobsRepo.created[0].IdempotencyKey)
	}
}

func TestDecideRejectsUnknownStatus(t *testing.T) {
	r := adminLoansRouter(&fakeAdminLoansRepo{}, &fakeJobsCreator{})

	for _, status := range []string{"repaid", "pending", "bogus", ""} {
		req := httptest.NewRequest(http.MethodPut, "/api/admin/loans/"+uuid.NewString(), decideBody(status))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status=%q: code = %d, want 400", status, w.Code)
		}
	}
}

func TestDecideConflictsOnAlreadyDecidedLoan(t *testing.T) {
	repo := &fakeAdminLoansRepo{
		decideFn: func(ctx context.Context, id string, status loan.Status) (loan.Loan, error) {
			return loan.Loan{}, loan.ErrInvalidTransition
		},
	}
	jobsRepo := &fakeJobsCreator{}
	r := adminLoansRouter(repo, jobsRepo)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/loans/"+uuid.NewString(), decideBody("rejected"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if len(jobsRepo.created) != 0 {
		t.Fatal("no job should be enqueued for a failed decision")
	}
	if repo.tx.committed {
		t.Fatal("transaction should not be committed")
	}
}

func TestDecideMissingLoan(t *testing.T) {
	repo := &fakeAdminLoansRepo{
		decideFn: func(ctx context.Context, id string, status loan.Status) (loan.Loan, error) {
			return loan.Loan{}, loan.ErrNotFound
		},
	}
	r := adminLoansRouter(repo, &fakeJobsCreator{})

	req := httptest.NewRequest(http.MethodPut, "/api/admin/loans/"+uuid.NewString(), decideBody("approved"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAdminListForwardsQueryFilter(t *testing.T) {
	var gotQuery string
	repo := &fakeAdminLoansRepo{
		listFn: func(ctx context.Context, status loan.Status, query string) ([]loan.Loan, error) {
			gotQuery = query
			return []loan.Loan{}, nil
		},
	}
	r := adminLoansRouter(repo, &fakeJobsCreator{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/loans?query=jane", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotQuery != "jane" {
		t.Fatalf("repo query = %q, want jane", gotQuery)
	}
}

func TestAdminListRejectsUnknownStatusFilter(t *testing.T) {
	r := adminLoansRouter(&fakeAdminLoansRepo{}, &fakeJobsCreator{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/loans?status=bogus", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
