package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrInvalidOrder возвращается при попытке поставить в очередь заказ с
	// незаполненными обязательными полями. Такой заказ не сохраняется.
	ErrInvalidOrder = errors.New("invalid queued order")
	// ErrQueuedOrderNotFound возвращается для точечных операций по
	// отсутствующей записи.
	ErrQueuedOrderNotFound = errors.New("queued order not found")
)

const defaultFailedCap = 50

// Signals получает сигналы очереди. Отрисовка уведомлений - забота
// получателя, очередь только сообщает о событии.
type Signals interface {
	OrderFailed(order *models.FailedOrder)
}

// Store - локальная долговременная очередь заказов поверх sqlite-файла.
// Переживает перезапуск процесса: всё состояние в файле.
type Store struct {
	path      string
	failedCap int
	signals   Signals
	logger    *zap.SugaredLogger

	// Открытие файла ленивое и одноразовое: конкурентные первые вызовы
	// разделяют один результат через singleflight, а не гонятся за
	// собственными дескрипторами. Неуспешное открытие можно повторить
	// следующим вызовом - поэтому не sync.Once.
	sf singleflight.Group
	mu sync.Mutex
	db *gorm.DB
}

// NewStore создаёт очередь поверх файла path. База не открывается до первого
// обращения.
func NewStore(path string, failedCap int, signals Signals, logger *zap.SugaredLogger) *Store {
	if failedCap <= 0 {
		failedCap = defaultFailedCap
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		path:      path,
		failedCap: failedCap,
		signals:   signals,
		logger:    logger,
	}
}

// handle возвращает открытую базу, открывая её при первом обращении.
func (s *Store) handle() (*gorm.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		return db, nil
	}

	v, err, _ := s.sf.Do("open", func() (interface{}, error) {
		s.mu.Lock()
		if s.db != nil {
			db := s.db
			s.mu.Unlock()
			return db, nil
		}
		s.mu.Unlock()

		db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open queue store: %w", err)
		}
		if err := db.AutoMigrate(&models.QueuedOrder{}, &models.FailedOrder{}); err != nil {
			return nil, fmt.Errorf("migrate queue store: %w", err)
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gorm.DB), nil
}

// Enqueue валидирует заказ и ставит его в очередь, назначая id и queued_at.
func (s *Store) Enqueue(ctx context.Context, order *models.QueuedOrder) error {
	if err := validateQueuedOrder(order); err != nil {
		return err
	}

	db, err := s.handle()
	if err != nil {
		return err
	}

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.NewString()
	}
	order.QueuedAt = time.Now()

	if err := db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("enqueue order: %w", err)
	}

	s.logger.Infow("order queued", "id", order.ID, "client_order_id", order.ClientOrderID)
	return nil
}

// ListPending возвращает отложенные заказы в порядке постановки.
func (s *Store) ListPending(ctx context.Context) ([]*models.QueuedOrder, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var orders []*models.QueuedOrder
	if err := db.WithContext(ctx).Order("queued_at ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	return orders, nil
}

// Remove удаляет заказ из очереди.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Delete(&models.QueuedOrder{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("remove queued order: %w", err)
	}
	return nil
}

// IncrementRetry увеличивает счётчик попыток и возвращает новое значение.
// Инкремент и чтение идут одной транзакцией: два почти одновременных сбоя не
// могут оба увидеть устаревший счётчик.
func (s *Store) IncrementRetry(ctx context.Context, id uuid.UUID) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var count int
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.QueuedOrder{}).
			Where("id = ?", id).
			UpdateColumn("retry_count", gorm.Expr("retry_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrQueuedOrderNotFound
		}
		return tx.Model(&models.QueuedOrder{}).
			Where("id = ?", id).
			Select("retry_count").
			Scan(&count).Error
	})
	if err != nil {
		if errors.Is(err, ErrQueuedOrderNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return count, nil
}

// RecordError сохраняет текст последней ошибки заказа.
func (s *Store) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Model(&models.QueuedOrder{}).
		Where("id = ?", id).
		UpdateColumn("last_error", message)
	if result.Error != nil {
		return fmt.Errorf("record error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrQueuedOrderNotFound
	}
	return nil
}

// MoveToFailed переносит заказ в буфер неуспешных и удаляет его из очереди
// одной транзакцией. Буфер ограничен: при переполнении вытесняются самые
// старые записи, добавление и подрезка тоже атомарны.
func (s *Store) MoveToFailed(ctx context.Context, order *models.QueuedOrder, reason string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	failed := &models.FailedOrder{
		ID:            order.ID,
		ParentID:      order.ParentID,
		StudentID:     order.StudentID,
		ClientOrderID: order.ClientOrderID,
		Items:         order.Items,
		PaymentMethod: order.PaymentMethod,
		Notes:         order.Notes,
		ScheduledFor:  order.ScheduledFor,
		QueuedAt:      order.QueuedAt,
		RetryCount:    order.RetryCount,
		FailedAt:      time.Now(),
		FailureReason: reason,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(failed).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.QueuedOrder{}, "id = ?", order.ID).Error; err != nil {
			return err
		}
		return tx.Exec(`
			DELETE FROM failed_orders
			WHERE id NOT IN (
				SELECT id FROM failed_orders ORDER BY failed_at DESC, id DESC LIMIT ?
			)
		`, s.failedCap).Error
	})
	if err != nil {
		return fmt.Errorf("move to failed: %w", err)
	}

	s.logger.Warnw("order dead-lettered", "id", order.ID, "reason", reason)
	if s.signals != nil {
		s.signals.OrderFailed(failed)
	}
	return nil
}

// ListFailed возвращает неуспешные заказы (свежие первыми).
func (s *Store) ListFailed(ctx context.Context) ([]*models.FailedOrder, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var orders []*models.FailedOrder
	if err := db.WithContext(ctx).Order("failed_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list failed orders: %w", err)
	}
	return orders, nil
}

// ClearFailed очищает буфер неуспешных заказов по явному действию
// пользователя.
func (s *Store) ClearFailed(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Where("1 = 1").Delete(&models.FailedOrder{}).Error; err != nil {
		return fmt.Errorf("clear failed orders: %w", err)
	}
	return nil
}

// RequeueFailed возвращает неуспешный заказ в активную очередь со сброшенным
// счётчиком попыток.
func (s *Store) RequeueFailed(ctx context.Context, id uuid.UUID) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var failed models.FailedOrder
		if err := tx.First(&failed, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQueuedOrderNotFound
			}
			return err
		}
		if err := tx.Delete(&models.FailedOrder{}, "id = ?", id).Error; err != nil {
			return err
		}
		queued := &models.QueuedOrder{
			ID:            failed.ID,
			ParentID:      failed.ParentID,
			StudentID:     failed.StudentID,
			ClientOrderID: failed.ClientOrderID,
			Items:         failed.Items,
			PaymentMethod: failed.PaymentMethod,
			Notes:         failed.Notes,
			ScheduledFor:  failed.ScheduledFor,
			QueuedAt:      time.Now(),
			RetryCount:    0,
		}
		return tx.Create(queued).Error
	})
	if err != nil {
		if errors.Is(err, ErrQueuedOrderNotFound) {
			return err
		}
		return fmt.Errorf("requeue failed order: %w", err)
	}
	return nil
}

// Close закрывает базу. Следующее обращение откроет её заново.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying db: %w", err)
	}
	s.db = nil
	return sqlDB.Close()
}

// validateQueuedOrder проверяет обязательные поля перед постановкой в
// очередь.
func validateQueuedOrder(order *models.QueuedOrder) error {
	switch {
	case order.ParentID == uuid.Nil:
		return fmt.Errorf("%w: parent_id is required", ErrInvalidOrder)
	case order.StudentID == uuid.Nil:
		return fmt.Errorf("%w: student_id is required", ErrInvalidOrder)
	case len(order.Items) == 0:
		return fmt.Errorf("%w: items must not be empty", ErrInvalidOrder)
	}

	for _, item := range order.Items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: item product_id is required", ErrInvalidOrder)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrInvalidOrder)
		}
	}

	switch order.PaymentMethod {
	case models.PaymentMethodWallet, models.PaymentMethodCash:
	default:
		return fmt.Errorf("%w: unknown payment method", ErrInvalidOrder)
	}

	return nil
}
