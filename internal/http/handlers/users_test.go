package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/http/handlers"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/security"
)

type fakeProfileRepo struct {
	u user.User

	updateCalled bool
	updatedHash  string
	updatedName  string
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if id != f.u.ID {
		return user.User{}, postgres.ErrUserNotFound
	}
	return f.u, nil
}

func (f *fakeProfileRepo) Update(ctx context.Context, id string, name, email, passwordHash string) (user.User, error) {
	f.updateCalled = true
	f.updatedName = name
	f.updatedHash = passwordHash

	u := f.u
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	return u, nil
}

func (f *fakeProfileRepo) List(ctx context.Context, query, role string) ([]user.User, error) {
	return nil, nil
}

func profileRouter(repo *fakeProfileRepo, userID string) *gin.Engine {
	r := gin.New()
	r.Use(identity(userID, user.RoleUser))
	r.PUT("/api/user/update", handlers.NewUsersHandler(repo).Update)
	return r
}

func putJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newProfileRepo(t *testing.T, password string) *fakeProfileRepo {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}

	return &fakeProfileRepo{u: user.User{
		ID:           uuid.NewString(),
		Name:         "Jane",
		Email:        "jane@x.io",
		PasswordHash: hash,
		Role:         user.RoleUser,
	}}
}

func TestUpdatePasswordRequiresCurrent(t *testing.T) {
	repo := newProfileRepo(t, "rightpassword")
	r := profileRouter(repo, repo.u.ID)

	w := putJSON(r, "/api/user/update", map[string]string{
		"newPassword": "attacker-chosen",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if repo.updateCalled {
		t.Fatal("repo updated without current password")
	}
}

func TestUpdatePasswordRejectsWrongCurrent(t *testing.T) {
	repo := newProfileRepo(t, "rightpassword")
	r := profileRouter(repo, repo.u.ID)

	w := putJSON(r, "/api/user/update", map[string]string{
		"currentPassword": "wrongpassword",
		"newPassword":     "brand-new-pass",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if repo.updateCalled {
		t.Fatal("repo updated despite wrong current password")
	}
}

func TestUpdatePasswordWithCurrent(t *testing.T) {
	repo := newProfileRepo(t, "rightpassword")
	r := profileRouter(repo, repo.u.ID)

	w := putJSON(r, "/api/user/update", map[string]string{
		"currentPassword": "rightpassword",
		"newPassword":     "brand-new-pass",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !repo.updateCalled {
		t.Fatal("repo never updated")
	}
	if err := security.CheckPassword(repo.updatedHash, "brand-new-pass"); err != nil {
		t.Fatal("stored hash does not match the new password")
	}
}

func TestUpdateNameWithoutPassword(t *testing.T) {
	repo := newProfileRepo(t, "rightpassword")
	r := profileRouter(repo, repo.u.ID)

	w := putJSON(r, "/api/user/update", map[string]string{"name": "Janet"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if repo.updatedName != "Janet" {
		t.Fatalf("name = %q, want Janet", repo.updatedName)
	}
	if repo.updatedHash != "" {
		t.Fatal("password hash touched on a name-only update")
	}
}

func TestUpdateWithEmptyBodyRejected(t *testing.T) {
	repo := newProfileRepo(t, "rightpassword")
	r := profileRouter(repo, repo.u.ID)

	w := putJSON(r, "/api/user/update", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if repo.updateCalled {
		t.Fatal("repo updated with nothing to update")
	}
}
