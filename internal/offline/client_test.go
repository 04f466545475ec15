package offline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func settlementRequest() *models.SettlementRequest {
	return &models.SettlementRequest{
		ParentID:      uuid.New(),
		StudentID:     uuid.New(),
		ClientOrderID: uuid.NewString(),
		Items: []models.SettlementItem{
			{ProductID: uuid.New(), Quantity: 1, PriceAtOrder: decimal.NewFromInt(10)},
		},
		PaymentMethod: models.PaymentMethodWallet,
	}
}

func TestClient_SubmitCreated(t *testing.T) {
	orderID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.SettlementResult{
			OrderID:     orderID,
			Status:      models.OrderStatusConfirmed,
			TotalAmount: decimal.NewFromInt(10),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result, err := client.Submit(context.Background(), settlementRequest(), "token-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Fatal("201 must not be marked as duplicate")
	}
	if result.OrderID != orderID {
		t.Fatalf("expected order %s, got %s", orderID, result.OrderID)
	}
}

func TestClient_SubmitDuplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(models.SettlementResult{
			OrderID: uuid.New(),
			Status:  models.OrderStatusConfirmed,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result, err := client.Submit(context.Background(), settlementRequest(), "t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("200 must be marked as duplicate")
	}
}

func TestClient_SubmitBusinessError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error:   models.ErrorKindInsufficientBalance,
			Message: "balance 5, need 30",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Submit(context.Background(), settlementRequest(), "t")

	var bizErr *BusinessError
	if !errors.As(err, &bizErr) {
		t.Fatalf("expected BusinessError, got %v", err)
	}
	if bizErr.Kind != models.ErrorKindInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %s", bizErr.Kind)
	}
}

func TestClient_SubmitTransientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"server error", http.StatusInternalServerError},
		{"concurrent modification", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, time.Second)
			_, err := client.Submit(context.Background(), settlementRequest(), "t")

			var trErr *TransientError
			if !errors.As(err, &trErr) {
				t.Fatalf("expected TransientError for status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestClient_SubmitNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // соединение заведомо не установится

	client := NewClient(server.URL, time.Second)
	_, err := client.Submit(context.Background(), settlementRequest(), "t")

	var trErr *TransientError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransientError, got %v", err)
	}
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode login request: %v", err)
		}
		if req.Login != "parent" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.AuthResponse{
			UserID: uuid.New(),
			Login:  req.Login,
			Token:  "issued-token",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	token, err := client.Login(context.Background(), "parent", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "issued-token" {
		t.Fatalf("expected issued token, got %q", token)
	}

	if _, err := client.Login(context.Background(), "parent", "wrong"); err == nil {
		t.Fatal("expected error for bad credentials")
	}

	tokens := NewLoginTokenSource(client, "parent", "secret")
	token, err = tokens.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "issued-token" {
		t.Fatalf("expected issued token from source, got %q", token)
	}
}

func TestClientConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ping" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	client := NewClient(server.URL, time.Second)
	conn := NewClientConnectivity(client, time.Second)
	if !conn.Online() {
		t.Fatal("expected online while server is up")
	}

	server.Close()
	if conn.Online() {
		t.Fatal("expected offline after server shutdown")
	}
}
