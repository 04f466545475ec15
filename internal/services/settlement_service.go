package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/agamariel/canteen/internal/storage"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProductUnavailable  = errors.New("product unavailable")
	// ErrConcurrentModification возвращается после исчерпания CAS-попыток.
	// Повтор запроса безопасен: заказ не создан, остатки возвращены.
	ErrConcurrentModification = errors.New("concurrent modification, safe to retry")
)

const (
	// casMaxRetries ограничивает число повторов CAS-списания при
	// конкурентных изменениях баланса.
	casMaxRetries = 3
	casRetryPause = 20 * time.Millisecond
)

// ValidationError - ошибка валидации запроса. Такой запрос не ставится в
// очередь и не повторяется.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// SettlementService проводит заказ: идемпотентность, резервирование остатков,
// списание баланса и фиксация заказа как одна единица работы.
type SettlementService interface {
	Settle(ctx context.Context, req *models.SettlementRequest) (*models.SettlementResult, error)
}

// SettlementServiceImpl реализует SettlementService.
type SettlementServiceImpl struct {
	db           TxBeginner
	orders       OrderStorage
	stock        StockStorage
	wallets      WalletStorage
	transactions TransactionStorage
	logger       *zap.SugaredLogger
}

// NewSettlementService создаёт сервис проведения заказов.
func NewSettlementService(db TxBeginner, orders OrderStorage, stock StockStorage, wallets WalletStorage, transactions TransactionStorage, logger *zap.SugaredLogger) *SettlementServiceImpl {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SettlementServiceImpl{
		db:           db,
		orders:       orders,
		stock:        stock,
		wallets:      wallets,
		transactions: transactions,
		logger:       logger,
	}
}

// Settle проводит заказ. Повтор с тем же (parent_id, client_order_id)
// возвращает уже созданный заказ и не порождает второго.
func (s *SettlementServiceImpl) Settle(ctx context.Context, req *models.SettlementRequest) (*models.SettlementResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Проверка идемпотентности до каких-либо мутаций
	existing, err := s.orders.GetByClientOrderID(ctx, req.ParentID, req.ClientOrderID)
	if err == nil {
		return duplicateResult(existing), nil
	}
	if !errors.Is(err, storage.ErrOrderNotFound) {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}

	// Предварительная проверка каталога. Авторитетная проверка остатка -
	// атомарный декремент ниже.
	if err := s.precheckProducts(ctx, req.Items); err != nil {
		return nil, err
	}

	// Резервирование остатков: атомарный условный декремент по каждой позиции.
	// При нехватке возвращаем уже зарезервированное в этом же запросе.
	reserved := make([]models.SettlementItem, 0, len(req.Items))
	for _, item := range req.Items {
		if err := s.stock.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			s.compensateStock(ctx, req.ClientOrderID, reserved)
			if errors.Is(err, storage.ErrInsufficientStock) {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, storage.ErrInsufficientStock)
			}
			if errors.Is(err, storage.ErrProductNotFound) {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrProductUnavailable)
			}
			return nil, fmt.Errorf("reserve stock: %w", err)
		}
		reserved = append(reserved, item)
	}

	total := orderTotal(req.Items)
	order := buildOrder(req, total)

	result, err := s.commit(ctx, req, order, total)
	if err != nil {
		if errors.Is(err, storage.ErrOrderAlreadyExists) {
			// Проигран забег идемпотентности: параллельный повтор уже создал
			// заказ. Возвращаем свой резерв и отдаём заказ-победитель.
			s.compensateStock(ctx, req.ClientOrderID, reserved)
			winner, gErr := s.orders.GetByClientOrderID(ctx, req.ParentID, req.ClientOrderID)
			if gErr != nil {
				return nil, fmt.Errorf("fetch winner after duplicate: %w", gErr)
			}
			return duplicateResult(winner), nil
		}
		s.compensateStock(ctx, req.ClientOrderID, reserved)
		return nil, err
	}

	return result, nil
}

// commit фиксирует заказ. Для оплаты с кошелька списание CAS, заказ, позиции
// и запись журнала идут одной транзакцией; промежуточные состояния снаружи
// не видны.
func (s *SettlementServiceImpl) commit(ctx context.Context, req *models.SettlementRequest, order *models.Order, total decimal.Decimal) (*models.SettlementResult, error) {
	if !req.PaymentMethod.RequiresBalance() {
		if err := s.commitWithoutBalance(ctx, order); err != nil {
			return nil, err
		}
		return &models.SettlementResult{OrderID: order.ID, Status: order.Status, TotalAmount: total}, nil
	}

	backoff := retry.WithMaxRetries(casMaxRetries, retry.NewConstant(casRetryPause))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		balance, err := s.wallets.GetBalance(ctx, req.ParentID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if balance.LessThan(total) {
			return ErrInsufficientBalance
		}

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// CAS: ноль затронутых строк означает конкурентное изменение,
		// перечитываем баланс и пробуем снова
		if err := s.wallets.DeductCAS(ctx, tx, req.ParentID, total, balance); err != nil {
			if errors.Is(err, storage.ErrBalanceConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		if err := s.orders.CreateWithTx(ctx, tx, order); err != nil {
			return err
		}

		txn := &models.Transaction{
			UserID:    req.ParentID,
			OrderID:   &order.ID,
			Amount:    total,
			Direction: models.TransactionDebit,
		}
		if err := s.transactions.CreateWithTx(ctx, tx, txn); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrBalanceConflict) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	return &models.SettlementResult{OrderID: order.ID, Status: order.Status, TotalAmount: total}, nil
}

// commitWithoutBalance фиксирует заказ с оплатой наличными: кошелёк не
// затрагивается, запись журнала не пишется.
func (s *SettlementServiceImpl) commitWithoutBalance(ctx context.Context, order *models.Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.orders.CreateWithTx(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// precheckProducts проверяет, что все товары существуют, доступны и остатка
// хватает на запрошенное количество.
func (s *SettlementServiceImpl) precheckProducts(ctx context.Context, items []models.SettlementItem) error {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.stock.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok || !p.IsAvailable {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrProductUnavailable)
		}
		if p.StockQuantity < item.Quantity {
			return fmt.Errorf("product %s: %w", item.ProductID, storage.ErrInsufficientStock)
		}
	}

	return nil
}

// compensateStock возвращает зарезервированные позиции после неуспешного
// проведения. Ошибки возврата копятся через multierr и логируются: заказ уже
// не состоится, а утечка остатка требует внимания оператора.
func (s *SettlementServiceImpl) compensateStock(ctx context.Context, clientOrderID string, reserved []models.SettlementItem) {
	var errs error
	for _, item := range reserved {
		if err := s.stock.Restore(ctx, item.ProductID, item.Quantity); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore %s x%d: %w", item.ProductID, item.Quantity, err))
		}
	}
	if errs != nil {
		s.logger.Errorw("stock compensation failed", "client_order_id", clientOrderID, "error", errs)
	}
}

// validateRequest проверяет обязательные поля запроса.
func validateRequest(req *models.SettlementRequest) error {
	switch {
	case req.ParentID == uuid.Nil:
		return &ValidationError{Reason: "parent_id is required"}
	case req.StudentID == uuid.Nil:
		return &ValidationError{Reason: "student_id is required"}
	case req.ClientOrderID == "":
		return &ValidationError{Reason: "client_order_id is required"}
	case len(req.Items) == 0:
		return &ValidationError{Reason: "items must not be empty"}
	}

	for _, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return &ValidationError{Reason: "item product_id is required"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Reason: "item quantity must be positive"}
		}
		if item.PriceAtOrder.IsNegative() {
			return &ValidationError{Reason: "item price must not be negative"}
		}
	}

	switch req.PaymentMethod {
	case models.PaymentMethodWallet, models.PaymentMethodCash:
	default:
		return &ValidationError{Reason: "unknown payment method"}
	}

	return nil
}

// orderTotal считает сумму заказа по зафиксированным ценам позиций.
func orderTotal(items []models.SettlementItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.PriceAtOrder.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// buildOrder собирает заказ из запроса.
func buildOrder(req *models.SettlementRequest, total decimal.Decimal) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		ParentID:      req.ParentID,
		StudentID:     req.StudentID,
		ClientOrderID: req.ClientOrderID,
		Status:        models.OrderStatusConfirmed,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		ScheduledFor:  req.ScheduledFor,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, &models.OrderItem{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		})
	}
	return order
}

// duplicateResult собирает результат для повторной отправки по ключу
// идемпотентности.
func duplicateResult(order *models.Order) *models.SettlementResult {
	return &models.SettlementResult{
		OrderID:     order.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Duplicate:   true,
	}
}
