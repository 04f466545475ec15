package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet представляет предоплаченный кошелёк родителя.
// Баланс изменяется только атомарными операциями хранилища (CAS/инкремент),
// никогда через "прочитал-посчитал-записал".
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id"`
	Balance   decimal.Decimal `db:"balance"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// TransactionDirection - направление движения средств.
type TransactionDirection string

const (
	TransactionDebit  TransactionDirection = "DEBIT"
	TransactionCredit TransactionDirection = "CREDIT"
)

// Transaction - запись в журнале движений по кошельку.
// Пишется в одной транзакции с заказом и служит следом проведения.
type Transaction struct {
	ID        uuid.UUID            `db:"id"`
	UserID    uuid.UUID            `db:"user_id"`
	OrderID   *uuid.UUID           `db:"order_id"`
	Amount    decimal.Decimal      `db:"amount"`
	Direction TransactionDirection `db:"direction"`
	CreatedAt time.Time            `db:"created_at"`
}

// BalanceResponse - ответ с балансом кошелька.
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

// TopUpRequest - запрос на пополнение кошелька.
type TopUpRequest struct {
	Amount float64 `json:"amount"`
}

// TransactionResponse DTO записи журнала.
type TransactionResponse struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Amount    float64    `json:"amount"`
	Direction string     `json:"direction"`
	CreatedAt string     `json:"created_at"`
}
