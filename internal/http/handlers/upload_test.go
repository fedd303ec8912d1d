package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swiftloan/api/internal/http/handlers"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	failN int // fail the Nth call (1-based), 0 = never
}

func (f *fakeUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.failN != 0 && n == f.failN {
		return "", errors.New("cloud rejected file")
	}

	// echo the name back so order can be asserted
	return "https://cdn.test/" + filename, nil
}

func uploadRouter(up *fakeUploader) *gin.Engine {
	r := gin.New()
	h := handlers.NewUploadHandler(up, nil)
	r.POST("/api/upload", identity(uuid.NewString(), "user"), h.Upload)
	return r
}

func multipartBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(part, "content of %s", name)
	}

	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	return buf, mw.FormDataContentType()
}

func TestUploadPreservesSubmissionOrder(t *testing.T) {
	up := &fakeUploader{}
	r := uploadRouter(up)

	body, contentType := multipartBody(t, "a.pdf", "b.pdf", "c.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"https://cdn.test/a.pdf",
		"https://cdn.test/b.pdf",
		"https://cdn.test/c.pdf",
	}
	if len(resp.URLs) != len(want) {
		t.Fatalf("urls = %v", resp.URLs)
	}
	for i := range want {
		if resp.URLs[i] != want[i] {
			t.Fatalf("urls[%d] = %s, want %s", i, resp.URLs[i], want[i])
		}
	}
}

func TestUploadFailsWholeBatchOnSingleError(t *testing.T) {
	up := &fakeUploader{failN: 2}
	r := uploadRouter(up)

	body, contentType := multipartBody(t, "a.pdf", "b.pdf", "c.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestUploadRejectsEmptyBatch(t *testing.T) {
	r := uploadRouter(&fakeUploader{})

	body, contentType := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
