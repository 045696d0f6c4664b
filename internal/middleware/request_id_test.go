package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func runRequestID(t *testing.T, inbound string) (ctxID, echoed string) {
	t.Helper()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/locations", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return ctxID, rec.Header().Get(RequestIDHeader)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("generates when absent", func(t *testing.T) {
		t.Parallel()

		ctxID, echoed := runRequestID(t, "")
		if ctxID == "" {
			t.Fatal("no request ID bound to context")
		}
		if _, err := uuid.Parse(ctxID); err != nil {
			t.Errorf("generated ID %q is not a uuid: %v", ctxID, err)
		}
		if echoed != ctxID {
			t.Errorf("response header %q does not match context ID %q", echoed, ctxID)
		}
	})

	t.Run("honors inbound header", func(t *testing.T) {
		t.Parallel()

		ctxID, echoed := runRequestID(t, "client-supplied-id")
		if ctxID != "client-supplied-id" {
			t.Errorf("context ID = %q, want the inbound header value", ctxID)
		}
		if echoed != "client-supplied-id" {
			t.Errorf("echoed ID = %q, want the inbound header value", echoed)
		}
	})

	t.Run("replaces oversized inbound IDs", func(t *testing.T) {
		t.Parallel()

		oversized := strings.Repeat("a", maxRequestIDLen+1)
		ctxID, _ := runRequestID(t, oversized)
		if ctxID == oversized {
			t.Error("oversized inbound ID was kept")
		}
		if _, err := uuid.Parse(ctxID); err != nil {
			t.Errorf("replacement ID %q is not a uuid: %v", ctxID, err)
		}
	})
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	t.Parallel()

	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on a bare context = %q, want empty", got)
	}
}
