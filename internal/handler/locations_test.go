package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authedRequest(method, target, userID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := auth.ContextWithAuth(req.Context(), &model.AuthContext{
		UserID:   userID,
		Username: "alice",
		KeyID:    "key1",
	})
	return req.WithContext(ctx)
}

func TestLocations_Success(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed("user1", 100)
	locations := &fakeLocations{results: []*model.Location{
		{ID: "loc1", LocationType: model.LocationLocker, Name: "Central Locker", District: "Central"},
		{ID: "loc2", LocationType: model.LocationShop, Name: "Kwun Tong Shop", District: "Kwun Tong"},
	}}
	svc := service.NewLocationService(locations, ledger, nil, 5, time.Minute, nil)
	h := NewLocationHandler(testLogger(), svc)

	req := authedRequest(http.MethodGet, "/api/locations", "user1")
	rec := httptest.NewRecorder()
	h.Locations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Count            int               `json:"count"`
		Locations        []json.RawMessage `json:"locations"`
		CreditsUsed      int64             `json:"credits_used"`
		CreditsRemaining int64             `json:"credits_remaining"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Locations) != 2 {
		t.Errorf("count = %d, locations = %d, want 2/2", body.Count, len(body.Locations))
	}
	if body.CreditsUsed != 5 {
		t.Errorf("credits_used = %d, want 5", body.CreditsUsed)
	}
	if body.CreditsRemaining != 95 {
		t.Errorf("credits_remaining = %d, want 95", body.CreditsRemaining)
	}

	// Internal fields must not leak into the payload.
	var first map[string]any
	if err := json.Unmarshal(body.Locations[0], &first); err != nil {
		t.Fatalf("unmarshal location: %v", err)
	}
	if _, ok := first["is_active"]; ok {
		t.Error("is_active leaked into the location payload")
	}
	if _, ok := first["location_type"]; !ok {
		t.Error("location_type missing from the payload")
	}
}

func TestLocations_EmptyResultStillCharges(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed("user1", 10)
	svc := service.NewLocationService(&fakeLocations{}, ledger, nil, 5, time.Minute, nil)
	h := NewLocationHandler(testLogger(), svc)

	req := authedRequest(http.MethodGet, "/api/locations?district=Nowhere", "user1")
	rec := httptest.NewRecorder()
	h.Locations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count            int               `json:"count"`
		Locations        []json.RawMessage `json:"locations"`
		CreditsRemaining int64             `json:"credits_remaining"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
	if body.Locations == nil {
		t.Error("locations must be an empty array, not null")
	}
	if body.CreditsRemaining != 5 {
		t.Errorf("credits_remaining = %d, want 5 (empty result still costs)", body.CreditsRemaining)
	}
}

func TestLocations_InsufficientCredits(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed("user1", 3)
	svc := service.NewLocationService(&fakeLocations{}, ledger, nil, 5, time.Minute, nil)
	h := NewLocationHandler(testLogger(), svc)

	req := authedRequest(http.MethodGet, "/api/locations", "user1")
	rec := httptest.NewRecorder()
	h.Locations(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}

	var body struct {
		Error     string `json:"error"`
		Required  int64  `json:"required"`
		Available int64  `json:"available"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Insufficient credits" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Required != 5 || body.Available != 3 {
		t.Errorf("required/available = %d/%d, want 5/3", body.Required, body.Available)
	}
}

func TestLocations_MissingAuthContext(t *testing.T) {
	svc := service.NewLocationService(&fakeLocations{}, newFakeLedger(), nil, 5, time.Minute, nil)
	h := NewLocationHandler(testLogger(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
	rec := httptest.NewRecorder()
	h.Locations(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
