package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

func sessionRequest(method, target, userID string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.ContextWithSessionUser(req.Context(), userID))
}

func TestCreateAPIKeyHandler(t *testing.T) {
	repo := newFakeKeys()
	h := NewAPIKeyHandler(testLogger(), service.NewAPIKeyService(repo))

	req := sessionRequest(http.MethodPost, "/v1/api-keys", "user1", `{"name":"Production"}`)
	rec := httptest.NewRecorder()
	h.CreateAPIKey(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var response model.APIKeyCreateResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Name != "Production" {
		t.Errorf("name = %q", response.Name)
	}
	if len(response.Key) != auth.KeyLen {
		t.Errorf("key length = %d, want %d", len(response.Key), auth.KeyLen)
	}
}

func TestCreateAPIKeyHandler_EmptyBody(t *testing.T) {
	repo := newFakeKeys()
	h := NewAPIKeyHandler(testLogger(), service.NewAPIKeyService(repo))

	req := sessionRequest(http.MethodPost, "/v1/api-keys", "user1", "")
	rec := httptest.NewRecorder()
	h.CreateAPIKey(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 with default name", rec.Code)
	}

	var response model.APIKeyCreateResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Name != "API Key" {
		t.Errorf("name = %q, want default", response.Name)
	}
}

func TestListAPIKeysHandler_PreviewOnly(t *testing.T) {
	repo := newFakeKeys()
	svc := service.NewAPIKeyService(repo)
	h := NewAPIKeyHandler(testLogger(), svc)

	created, err := svc.CreateKey(context.Background(), "user1", "mine")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := sessionRequest(http.MethodGet, "/v1/api-keys", "user1", "")
	rec := httptest.NewRecorder()
	h.ListAPIKeys(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if strings.Contains(rec.Body.String(), created.Key) {
		t.Error("plaintext secret leaked into the listing")
	}

	var response struct {
		Count   int                   `json:"count"`
		APIKeys []model.APIKeyResponse `json:"api_keys"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Count != 1 {
		t.Fatalf("count = %d, want 1", response.Count)
	}
	if want := created.Key[:model.KeyPreviewLen] + "..."; response.APIKeys[0].KeyPreview != want {
		t.Errorf("preview = %q, want %q", response.APIKeys[0].KeyPreview, want)
	}
}

func TestDeleteAPIKeyHandler(t *testing.T) {
	repo := newFakeKeys()
	svc := service.NewAPIKeyService(repo)
	h := NewAPIKeyHandler(testLogger(), svc)

	created, err := svc.CreateKey(context.Background(), "user1", "doomed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deleteReq := func(userID, keyID string) *httptest.ResponseRecorder {
		req := sessionRequest(http.MethodDelete, "/v1/api-keys/"+keyID, userID, "")
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("keyID", keyID)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		h.DeleteAPIKey(rec, req)
		return rec
	}

	// Cross-user delete reads as missing.
	if rec := deleteReq("user2", created.ID); rec.Code != http.StatusNotFound {
		t.Fatalf("cross-user status = %d, want 404", rec.Code)
	}

	if rec := deleteReq("user1", created.ID); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if rec := deleteReq("user1", created.ID); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}
