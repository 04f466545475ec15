package storage

import (
	"context"
	"fmt"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransactionStorage реализует services.TransactionStorage для PostgreSQL.
type PostgresTransactionStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionStorage создаёт новый экземпляр PostgresTransactionStorage.
func NewPostgresTransactionStorage(pool *pgxpool.Pool) *PostgresTransactionStorage {
	return &PostgresTransactionStorage{pool: pool}
}

// CreateWithTx пишет запись журнала в рамках переданной транзакции.
func (s *PostgresTransactionStorage) CreateWithTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, order_id, amount, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, t.ID, t.UserID, t.OrderID, t.Amount, t.Direction).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByUserID возвращает журнал движений пользователя (новые первыми).
func (s *PostgresTransactionStorage) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, order_id, amount, direction, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var list []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Amount, &t.Direction, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		list = append(list, t)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return list, nil
}
