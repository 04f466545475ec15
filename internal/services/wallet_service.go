package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidTopUpAmount = errors.New("top-up amount must be positive")

// WalletService определяет операции над кошельком.
type WalletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.BalanceResponse, error)
	TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.BalanceResponse, error)
	GetTransactions(ctx context.Context, userID uuid.UUID) ([]*models.TransactionResponse, error)
}

// WalletServiceImpl реализует WalletService.
type WalletServiceImpl struct {
	db           TxBeginner
	wallets      WalletStorage
	transactions TransactionStorage
}

// NewWalletService создаёт сервис кошелька.
func NewWalletService(db TxBeginner, wallets WalletStorage, transactions TransactionStorage) *WalletServiceImpl {
	return &WalletServiceImpl{
		db:           db,
		wallets:      wallets,
		transactions: transactions,
	}
}

// GetBalance возвращает баланс кошелька.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*models.BalanceResponse, error) {
	balance, err := s.wallets.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	val, _ := balance.Float64()
	return &models.BalanceResponse{Balance: val}, nil
}

// TopUp пополняет кошелёк: атомарный инкремент баланса и запись журнала
// одной транзакцией.
func (s *WalletServiceImpl) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.BalanceResponse, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidTopUpAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.wallets.Credit(ctx, tx, userID, amount); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		UserID:    userID,
		Amount:    amount,
		Direction: models.TransactionCredit,
	}
	if err := s.transactions.CreateWithTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.GetBalance(ctx, userID)
}

// GetTransactions возвращает журнал движений пользователя.
func (s *WalletServiceImpl) GetTransactions(ctx context.Context, userID uuid.UUID) ([]*models.TransactionResponse, error) {
	list, err := s.transactions.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}

	resp := make([]*models.TransactionResponse, 0, len(list))
	for _, t := range list {
		amount, _ := t.Amount.Float64()
		resp = append(resp, &models.TransactionResponse{
			ID:        t.ID,
			OrderID:   t.OrderID,
			Amount:    amount,
			Direction: string(t.Direction),
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}

	return resp, nil
}
