package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет учётную запись родителя.
type User struct {
	ID           uuid.UUID `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RegisterRequest - запрос на регистрацию.
type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginRequest - запрос на аутентификацию.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// AuthResponse - ответ регистрации/входа.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Login  string    `json:"login"`
	Token  string    `json:"token"`
}
