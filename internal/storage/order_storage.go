package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists возвращается при нарушении уникальности
	// (parent_id, client_order_id) - повтор по ключу идемпотентности.
	ErrOrderAlreadyExists = errors.New("order already exists")
)

// PostgresOrderStorage реализует services.OrderStorage для PostgreSQL.
type PostgresOrderStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderStorage создаёт новый экземпляр PostgresOrderStorage.
func NewPostgresOrderStorage(pool *pgxpool.Pool) *PostgresOrderStorage {
	return &PostgresOrderStorage{pool: pool}
}

// CreateWithTx создаёт заказ вместе с позициями в рамках переданной транзакции.
func (s *PostgresOrderStorage) CreateWithTx(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (id, parent_id, student_id, client_order_id, status, total_amount, payment_method, notes, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	var scheduledFor sql.NullTime
	if order.ScheduledFor != nil {
		scheduledFor = sql.NullTime{Valid: true, Time: *order.ScheduledFor}
	}

	err := tx.QueryRow(ctx, query,
		order.ID,
		order.ParentID,
		order.StudentID,
		order.ClientOrderID,
		order.Status,
		order.TotalAmount,
		order.PaymentMethod,
		order.Notes,
		scheduledFor,
	).Scan(&order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrOrderAlreadyExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID

		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price_at_order)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.PriceAtOrder)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// GetByClientOrderID ищет заказ по ключу идемпотентности (parent_id, client_order_id).
func (s *PostgresOrderStorage) GetByClientOrderID(ctx context.Context, parentID uuid.UUID, clientOrderID string) (*models.Order, error) {
	query := `
		SELECT id, parent_id, student_id, client_order_id, status, total_amount, payment_method, notes, scheduled_for, created_at, updated_at
		FROM orders
		WHERE parent_id = $1 AND client_order_id = $2
	`

	order, err := scanOrder(s.pool.QueryRow(ctx, query, parentID, clientOrderID))
	if err != nil {
		return nil, err
	}

	items, err := s.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// GetByParentID возвращает заказы родителя с позициями (новые первыми).
func (s *PostgresOrderStorage) GetByParentID(ctx context.Context, parentID uuid.UUID) ([]*models.Order, error) {
	query := `
		SELECT id, parent_id, student_id, client_order_id, status, total_amount, payment_method, notes, scheduled_for, created_at, updated_at
		FROM orders
		WHERE parent_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	for _, order := range orders {
		items, err := s.getItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

// getItems читает позиции заказа.
func (s *PostgresOrderStorage) getItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_order
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtOrder); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return items, nil
}

// scanOrder помогает читать заказ из строки результата.
func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order        models.Order
		notes        sql.NullString
		scheduledFor sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.ParentID,
		&order.StudentID,
		&order.ClientOrderID,
		&order.Status,
		&order.TotalAmount,
		&order.PaymentMethod,
		&notes,
		&scheduledFor,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if notes.Valid {
		order.Notes = notes.String
	}
	if scheduledFor.Valid {
		t := scheduledFor.Time.In(time.UTC)
		order.ScheduledFor = &t
	}

	return &order, nil
}
