package storage

import (
	"context"
	"strings"
	"testing"
)

func TestSignParamsIsSortedAndStable(t *testing.T) {
	params := map[string]string{
		"timestamp": "1700000000",
		"folder":    "loan_documents",
	}

	// folder sorts before timestamp regardless of map order
	got := SignParams(params, "shhh")
	again := SignParams(map[string]string{
		"folder":    "loan_documents",
		"timestamp": "1700000000",
	}, "shhh")

	if got != again {
		t.Fatalf("signature is not stable: %q vs %q", got, again)
	}

	if len(got) != 40 {
		t.Fatalf("signature length = %d, want 40 hex chars", len(got))
	}
}

func TestSignParamsDependsOnSecret(t *testing.T) {
	params := map[string]string{"timestamp": "1700000000"}

	if SignParams(params, "a") == SignParams(params, "b") {
		t.Fatal("different secrets must produce different signatures")
	}
}

func TestUploadRequiresConfiguration(t *testing.T) {
	c := NewCloudinary(CloudinaryConfig{})

	_, err := c.Upload(context.Background(), "doc.pdf", strings.NewReader("x"))

	if err != ErrNotConfigured {
		t.Fatalf("got %v, want ErrNotConfigured", err)
	}
}
