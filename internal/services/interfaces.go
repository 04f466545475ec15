package services

import (
	"context"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxBeginner открывает транзакции базы данных. Реализуется pgxpool.Pool,
// в тестах подменяется фиктивной транзакцией.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStorage определяет интерфейс для работы с заказами.
type OrderStorage interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, order *models.Order) error
	GetByClientOrderID(ctx context.Context, parentID uuid.UUID, clientOrderID string) (*models.Order, error)
	GetByParentID(ctx context.Context, parentID uuid.UUID) ([]*models.Order, error)
}

// WalletStorage определяет интерфейс атомарных операций над кошельком.
type WalletStorage interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	DeductCAS(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount, expected decimal.Decimal) error
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
}

// StockStorage определяет интерфейс атомарных операций над остатками.
type StockStorage interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	Decrement(ctx context.Context, productID uuid.UUID, quantity int) error
	Restore(ctx context.Context, productID uuid.UUID, quantity int) error
}

// TransactionStorage определяет интерфейс журнала движений по кошельку.
type TransactionStorage interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
}

// UserStorage определяет интерфейс для работы с пользователями.
type UserStorage interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}
