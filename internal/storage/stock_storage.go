package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается, когда условный декремент не нашёл
	// строки с достаточным остатком: товар закончился или его разобрали
	// конкурентные заказы.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// PostgresStockStorage реализует services.StockStorage для PostgreSQL.
type PostgresStockStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStockStorage создаёт новый экземпляр PostgresStockStorage.
func NewPostgresStockStorage(pool *pgxpool.Pool) *PostgresStockStorage {
	return &PostgresStockStorage{pool: pool}
}

// GetByIDs возвращает товары по списку идентификаторов.
func (s *PostgresStockStorage) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, price, stock_quantity, is_available, updated_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]*models.Product, len(ids))
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsAvailable, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return products, nil
}

// Decrement резервирует quantity единиц товара одним условным UPDATE.
// Строка меняется только если остатка хватает и товар доступен; ноль
// затронутых строк означает проигрыш гонки конкурентному заказу.
func (s *PostgresStockStorage) Decrement(ctx context.Context, productID uuid.UUID, quantity int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND is_available AND stock_quantity >= $1
	`, quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Различаем отсутствующий товар и нехватку остатка
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}
		if !exists {
			return ErrProductNotFound
		}
		return ErrInsufficientStock
	}

	return nil
}

// Restore возвращает quantity единиц товара после неуспешного проведения.
// Компенсирующее действие к Decrement.
func (s *PostgresStockStorage) Restore(ctx context.Context, productID uuid.UUID, quantity int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE id = $2
	`, quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}
