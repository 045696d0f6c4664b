package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

func testAccountHandler(t *testing.T) (*AccountHandler, *fakeAccounts) {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-long-enough", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	repo := newFakeAccounts()
	svc := service.NewAccountService(repo, tokens, 100)
	return NewAccountHandler(testLogger(), svc), repo
}

func TestRegister(t *testing.T) {
	h, _ := testAccountHandler(t)

	body := `{"username":"alice","email":"alice@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response["username"] != "alice" {
		t.Errorf("username = %v", response["username"])
	}
	if _, ok := response["password_hash"]; ok {
		t.Error("password hash leaked into the response")
	}
}

func TestRegister_Conflict(t *testing.T) {
	h, _ := testAccountHandler(t)

	body := `{"username":"alice","email":"alice@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	h.Register(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRegister_BadBody(t *testing.T) {
	h, _ := testAccountHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	h, _ := testAccountHandler(t)

	register := `{"username":"alice","email":"alice@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(register))
	h.Register(httptest.NewRecorder(), req)

	t.Run("success", func(t *testing.T) {
		body := `{"username":"alice","password":"password123"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
		}

		var response struct {
			Token string         `json:"token"`
			User  map[string]any `json:"user"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if response.Token == "" {
			t.Error("expected a session token")
		}
		if response.User["username"] != "alice" {
			t.Errorf("user = %v", response.User)
		}
	})

	t.Run("bad_password", func(t *testing.T) {
		body := `{"username":"alice","password":"nope-nope"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}
