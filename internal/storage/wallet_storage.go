package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrBalanceConflict возвращается, когда CAS-обновление не затронуло
	// ни одной строки: баланс изменился конкурентно между чтением и записью.
	ErrBalanceConflict = errors.New("balance changed concurrently")
)

// PostgresWalletStorage реализует services.WalletStorage для PostgreSQL.
type PostgresWalletStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresWalletStorage создаёт новый экземпляр PostgresWalletStorage.
func NewPostgresWalletStorage(pool *pgxpool.Pool) *PostgresWalletStorage {
	return &PostgresWalletStorage{pool: pool}
}

// CreateWithTx создаёт кошелёк с нулевым балансом в рамках транзакции.
func (s *PostgresWalletStorage) CreateWithTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id, balance, updated_at)
		VALUES ($1, 0, NOW())
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetBalance возвращает текущий баланс кошелька.
func (s *PostgresWalletStorage) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// DeductCAS списывает amount одним условным UPDATE: строка меняется только
// если баланс всё ещё равен expected. Ноль затронутых строк означает
// конкурентное изменение - вызывающий перечитывает баланс и повторяет
// ограниченное число раз.
func (s *PostgresWalletStorage) DeductCAS(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount, expected decimal.Decimal) error {
	result, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance = $3
	`, amount, userID, expected)
	if err != nil {
		return fmt.Errorf("failed to deduct balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrBalanceConflict
	}

	return nil
}

// Credit пополняет кошелёк атомарным инкрементом.
func (s *PostgresWalletStorage) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	result, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrWalletNotFound
	}

	return nil
}
