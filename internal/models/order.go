package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodWallet - оплата с предоплаченного кошелька, требует списания баланса.
	PaymentMethodWallet PaymentMethod = "wallet"
	// PaymentMethodCash - оплата наличными при получении, баланс не затрагивается.
	PaymentMethodCash PaymentMethod = "cash"
)

// RequiresBalance возвращает true, если способ оплаты требует списания с кошелька.
func (m PaymentMethod) RequiresBalance() bool {
	return m == PaymentMethodWallet
}

// Order представляет оформленный заказ родителя для ученика.
type Order struct {
	ID            uuid.UUID       `db:"id"`
	ParentID      uuid.UUID       `db:"parent_id"`
	StudentID     uuid.UUID       `db:"student_id"`
	ClientOrderID string          `db:"client_order_id"`
	Status        OrderStatus     `db:"status"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	PaymentMethod PaymentMethod   `db:"payment_method"`
	Notes         string          `db:"notes"`
	ScheduledFor  *time.Time      `db:"scheduled_for"`
	Items         []*OrderItem    `db:"-"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// OrderItem представляет позицию заказа. Цена фиксируется в момент
// проведения заказа и далее не перечитывается из каталога.
type OrderItem struct {
	ID           uuid.UUID       `db:"id"`
	OrderID      uuid.UUID       `db:"order_id"`
	ProductID    uuid.UUID       `db:"product_id"`
	Quantity     int             `db:"quantity"`
	PriceAtOrder decimal.Decimal `db:"price_at_order"`
}

// SettlementItem - позиция заказа в запросе на проведение.
type SettlementItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

// SettlementRequest - запрос на проведение заказа.
type SettlementRequest struct {
	ParentID      uuid.UUID        `json:"parent_id"`
	StudentID     uuid.UUID        `json:"student_id"`
	ClientOrderID string           `json:"client_order_id"`
	Items         []SettlementItem `json:"items"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	Notes         string           `json:"notes,omitempty"`
	ScheduledFor  *time.Time       `json:"scheduled_for,omitempty"`
}

// SettlementResult - результат проведения заказа.
type SettlementResult struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	// Duplicate выставляется, когда запрос был повтором по ключу
	// идемпотентности и вернулся уже существующий заказ.
	Duplicate bool `json:"-"`
}

// OrderItemResponse DTO позиции заказа.
type OrderItemResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int       `json:"quantity"`
	PriceAtOrder float64   `json:"price_at_order"`
}

// OrderResponse DTO для списка заказов.
type OrderResponse struct {
	OrderID       uuid.UUID           `json:"order_id"`
	StudentID     uuid.UUID           `json:"student_id"`
	Status        string              `json:"status"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     string              `json:"created_at"`
}
