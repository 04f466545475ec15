package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agamariel/canteen/internal/auth"
	"github.com/agamariel/canteen/internal/models"
	"github.com/agamariel/canteen/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockUserStorage struct {
	CreateWithTxFunc func(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetByLoginFunc   func(ctx context.Context, login string) (*models.User, error)
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (m *mockUserStorage) CreateWithTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	if m.CreateWithTxFunc != nil {
		return m.CreateWithTxFunc(ctx, tx, user)
	}
	return nil
}

func (m *mockUserStorage) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrUserNotFound
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("empty credentials", func(t *testing.T) {
		svc := NewUserService(fakeDB{}, &mockUserStorage{}, &mockWalletStorage{}, "secret", time.Hour)
		if _, _, err := svc.Register(ctx, "", "password"); !errors.Is(err, ErrEmptyCredentials) {
			t.Fatalf("expected ErrEmptyCredentials, got %v", err)
		}
		if _, _, err := svc.Register(ctx, "parent", ""); !errors.Is(err, ErrEmptyCredentials) {
			t.Fatalf("expected ErrEmptyCredentials, got %v", err)
		}
	})

	t.Run("login already taken", func(t *testing.T) {
		svc := NewUserService(fakeDB{}, &mockUserStorage{
			CreateWithTxFunc: func(ctx context.Context, tx pgx.Tx, user *models.User) error {
				return storage.ErrLoginExists
			},
		}, &mockWalletStorage{}, "secret", time.Hour)
		if _, _, err := svc.Register(ctx, "parent", "password"); !errors.Is(err, storage.ErrLoginExists) {
			t.Fatalf("expected ErrLoginExists, got %v", err)
		}
	})

	t.Run("creates user with wallet and returns valid token", func(t *testing.T) {
		var createdWallet uuid.UUID
		svc := NewUserService(fakeDB{}, &mockUserStorage{},
			&mockWalletStorage{
				CreateWithTxFunc: func(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
					createdWallet = userID
					return nil
				},
			}, "secret", time.Hour)

		user, token, err := svc.Register(ctx, "parent", "password")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if createdWallet != user.ID {
			t.Fatalf("expected wallet for user %s, got %s", user.ID, createdWallet)
		}
		claims, err := auth.ValidateToken(token, "secret")
		if err != nil {
			t.Fatalf("token validation failed: %v", err)
		}
		if claims.UserID != user.ID {
			t.Fatalf("expected token for user %s, got %s", user.ID, claims.UserID)
		}
	})
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	stored := &models.User{ID: uuid.New(), Login: "parent", PasswordHash: hash}

	users := &mockUserStorage{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.User, error) {
			if login == stored.Login {
				return stored, nil
			}
			return nil, storage.ErrUserNotFound
		},
	}
	svc := NewUserService(fakeDB{}, users, &mockWalletStorage{}, "secret", time.Hour)

	t.Run("unknown login", func(t *testing.T) {
		if _, _, err := svc.Login(ctx, "stranger", "password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, _, err := svc.Login(ctx, "parent", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		user, token, err := svc.Login(ctx, "parent", "correct-password")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != stored.ID {
			t.Fatalf("expected user %s, got %s", stored.ID, user.ID)
		}
		if token == "" {
			t.Fatal("expected non-empty token")
		}
	})
}
