package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product представляет позицию меню столовой с учётом остатка.
// Остаток изменяется только атомарным условным декрементом/возвратом.
type Product struct {
	ID            uuid.UUID       `db:"id"`
	Name          string          `db:"name"`
	Price         decimal.Decimal `db:"price"`
	StockQuantity int             `db:"stock_quantity"`
	IsAvailable   bool            `db:"is_available"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
