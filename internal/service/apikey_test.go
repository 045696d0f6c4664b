package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
)

func TestCreateKey(t *testing.T) {
	t.Parallel()

	repo := newFakeKeys()
	svc := NewAPIKeyService(repo)

	key, err := svc.CreateKey(context.Background(), "user1", "Production")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if key.Name != "Production" {
		t.Errorf("name = %q, want Production", key.Name)
	}
	if !auth.ValidKeyFormat(key.Key) {
		t.Errorf("generated secret %q has invalid format", key.Key)
	}
	if !key.IsActive {
		t.Error("expected new key to be active")
	}
}

func TestCreateKeyDefaultName(t *testing.T) {
	t.Parallel()

	svc := NewAPIKeyService(newFakeKeys())

	key, err := svc.CreateKey(context.Background(), "user1", "   ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if key.Name != "API Key" {
		t.Errorf("name = %q, want default", key.Name)
	}
}

func TestCreateKeyNameTooLong(t *testing.T) {
	t.Parallel()

	svc := NewAPIKeyService(newFakeKeys())

	_, err := svc.CreateKey(context.Background(), "user1", strings.Repeat("x", 101))
	if !errors.Is(err, ErrKeyNameTooLong) {
		t.Fatalf("expected ErrKeyNameTooLong, got %v", err)
	}
}

func TestCreateKeyCollisionRetry(t *testing.T) {
	t.Parallel()

	repo := newFakeKeys()
	repo.collideTimes = 1
	svc := NewAPIKeyService(repo)

	key, err := svc.CreateKey(context.Background(), "user1", "retry")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if key == nil {
		t.Fatal("expected a key after retry")
	}
	if repo.createCalls != 2 {
		t.Errorf("create calls = %d, want 2", repo.createCalls)
	}
}

func TestCreateKeyCollisionExhausted(t *testing.T) {
	t.Parallel()

	repo := newFakeKeys()
	repo.collideTimes = 2
	svc := NewAPIKeyService(repo)

	if _, err := svc.CreateKey(context.Background(), "user1", "doomed"); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}

func TestDeleteKeyOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeKeys()
	svc := NewAPIKeyService(repo)

	key, err := svc.CreateKey(context.Background(), "user1", "mine")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another user's delete must look like a missing key.
	if err := svc.DeleteKey(context.Background(), "user2", key.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := svc.DeleteKey(context.Background(), "user1", key.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteKey(context.Background(), "user1", key.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound on second delete, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	repo := newFakeKeys()
	repo.users["user1"] = &model.User{ID: "user1", Username: "alice", IsActive: true}
	svc := NewAPIKeyService(repo)

	key, err := svc.CreateKey(context.Background(), "user1", "resolve-me")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		ac, err := svc.Resolve(context.Background(), key.Key)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if ac.UserID != "user1" || ac.Username != "alice" || ac.KeyID != key.ID {
			t.Errorf("unexpected auth context: %+v", ac)
		}
	})

	t.Run("malformed_secret", func(t *testing.T) {
		if _, err := svc.Resolve(context.Background(), "short"); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("unknown_secret", func(t *testing.T) {
		unknown := strings.Repeat("a", 64)
		if _, err := svc.Resolve(context.Background(), unknown); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("inactive_user", func(t *testing.T) {
		repo.users["user1"].IsActive = false
		defer func() { repo.users["user1"].IsActive = true }()

		if _, err := svc.Resolve(context.Background(), key.Key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})
}
