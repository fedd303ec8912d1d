package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swiftloan/api/internal/auth"
	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/http/handlers"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/security"
)

type fakeUserStore struct {
	byEmail map[string]user.User
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return user.User{}, postgres.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	if _, taken := f.byEmail[email]; taken {
		return user.User{}, postgres.ErrEmailAlreadyUsed
	}
	u := user.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, Name: name, Role: role}
	f.byEmail[email] = u
	return u, nil
}

func authRouter(store *fakeUserStore) *gin.Engine {
	jwt := auth.NewManager("test-secret", time.Hour)
	cfg := config.Config{Env: "dev", TokenTTLDays: 7}
	h := handlers.NewAuthHandler(store, store, jwt, cfg)

	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)
	r.GET("/api/auth/logout", h.Logout)
	return r
}

func post(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookies(w *httptest.ResponseRecorder) map[string]string {
	out := map[string]string{}
	res := w.Result()
	for _, c := range res.Cookies() {
		out[c.Name] = c.Value
	}
	return out
}

func TestRegisterIssuesSessionAndDefaultsToUserRole(t *testing.T) {
	store := &fakeUserStore{byEmail: map[string]user.User{}}
	r := authRouter(store)

	w := post(r, "/api/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.io", "password": "supersecret",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	cookies := sessionCookies(w)
	if cookies["token"] == "" {
		t.Fatal("no token cookie set")
	}
	if cookies["role"] != "user" {
		t.Fatalf("role cookie = %q, want user", cookies["role"])
	}
	if store.byEmail["jane@x.io"].Role != user.RoleUser {
		t.Fatal("stored role should be user")
	}
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	store := &fakeUserStore{byEmail: map[string]user.User{
		"jane@x.io": {ID: "u1", Email: "jane@x.io"},
	}}
	r := authRouter(store)

	w := post(r, "/api/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.io", "password": "supersecret",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	hash, err := security.HashPassword("rightpassword")
	if err != nil {
		t.Fatal(err)
	}

	store := &fakeUserStore{byEmail: map[string]user.User{
		"jane@x.io": {ID: "u1", Email: "jane@x.io", PasswordHash: hash, Role: user.RoleUser},
	}}
	r := authRouter(store)

	w := post(r, "/api/auth/login", map[string]string{"email": "jane@x.io", "password": "rightpassword"})
	if w.Code != http.StatusOK {
		t.Fatalf("good password: status = %d", w.Code)
	}
	if sessionCookies(w)["token"] == "" {
		t.Fatal("no token cookie set")
	}

	w = post(r, "/api/auth/login", map[string]string{"email": "jane@x.io", "password": "wrongpassword"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status = %d, want 401", w.Code)
	}

	// unknown email answers identically to a bad password
	w = post(r, "/api/auth/login", map[string]string{"email": "nobody@x.io", "password": "whatever"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: status = %d, want 401", w.Code)
	}
}

func TestLogoutExpiresCookies(t *testing.T) {
	r := authRouter(&fakeUserStore{byEmail: map[string]user.User{}})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q, want /login", loc)
	}

	expired := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			expired[c.Name] = true
		}
	}
	for _, name := range []string{"token", "role", "userId"} {
		if !expired[name] {
			t.Fatalf("cookie %s not expired: %v", name, expired)
		}
	}
}
