package offline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries   = 5
	defaultBaseDelay    = 1 * time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultJitterMax    = 500 * time.Millisecond
	defaultPollInterval = 30 * time.Second
)

// Queue - операции очереди, нужные обработчику.
type Queue interface {
	ListPending(ctx context.Context) ([]*models.QueuedOrder, error)
	Remove(ctx context.Context, id uuid.UUID) error
	IncrementRetry(ctx context.Context, id uuid.UUID) (int, error)
	RecordError(ctx context.Context, id uuid.UUID, message string) error
	MoveToFailed(ctx context.Context, order *models.QueuedOrder, reason string) error
}

// Submitter отправляет заказ на сервер от имени родителя.
type Submitter interface {
	Submit(ctx context.Context, req *models.SettlementRequest, token string) (*models.SettlementResult, error)
}

// TokenSource выдаёт токен для очередной попытки отправки.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Connectivity сообщает, доступен ли сервер. При недоступности проход по
// очереди не начинается.
type Connectivity interface {
	Online() bool
}

// Notifier получает итог прохода по очереди.
type Notifier interface {
	QueueProcessed(processed int)
}

// ProcessorOptions - настройки обработчика. Нулевые значения заменяются
// умолчаниями.
type ProcessorOptions struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterMax    time.Duration
	PollInterval time.Duration
}

// Processor прогоняет очередь отложенных заказов: отправляет каждый на
// сервер, различает временные и терминальные отказы и ведёт счёт попыток.
type Processor struct {
	queue        Queue
	submitter    Submitter
	tokens       TokenSource
	connectivity Connectivity
	notifier     Notifier
	logger       *zap.SugaredLogger

	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	jitterMax    time.Duration
	pollInterval time.Duration

	// Единственный проход в любой момент. Повторный запуск при текущем
	// незавершённом - no-op, а не второй конкурентный проход.
	running atomic.Bool
	kick    chan struct{}
}

// NewProcessor создаёт обработчик очереди.
func NewProcessor(queue Queue, submitter Submitter, tokens TokenSource, connectivity Connectivity, notifier Notifier, opts ProcessorOptions, logger *zap.SugaredLogger) *Processor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.JitterMax < 0 {
		opts.JitterMax = defaultJitterMax
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Processor{
		queue:        queue,
		submitter:    submitter,
		tokens:       tokens,
		connectivity: connectivity,
		notifier:     notifier,
		logger:       logger,
		maxRetries:   opts.MaxRetries,
		baseDelay:    opts.BaseDelay,
		maxDelay:     opts.MaxDelay,
		jitterMax:    opts.JitterMax,
		pollInterval: opts.PollInterval,
		kick:         make(chan struct{}, 1),
	}
}

// Start запускает фоновый цикл обработки: по тикеру и по явным толчкам через
// Kick. Останавливается отменой контекста.
func (p *Processor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		p.logger.Infow("queue processor started", "poll_interval", p.pollInterval)

		p.runPass(ctx)
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("queue processor stopped")
				return
			case <-ticker.C:
			case <-p.kick:
			}
			p.runPass(ctx)
		}
	}()
}

// Kick просит обработчик пройти очередь вне расписания, например сразу после
// постановки заказа. Толчок не копится: если проход уже запрошен, второй
// сигнал поглощается.
func (p *Processor) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Processor) runPass(ctx context.Context) {
	processed, err := p.ProcessQueue(ctx)
	if err != nil {
		p.logger.Errorw("queue pass failed", "error", err)
		return
	}
	if processed > 0 {
		p.logger.Infow("queue pass finished", "processed", processed)
	}
}

// ProcessQueue выполняет один проход по очереди и возвращает число успешно
// проведённых заказов. При недоступности сервера или уже идущем проходе
// возвращает 0 без ошибки.
func (p *Processor) ProcessQueue(ctx context.Context) (int, error) {
	if p.connectivity != nil && !p.connectivity.Online() {
		return 0, nil
	}
	if !p.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer p.running.Store(false)

	orders, err := p.queue.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	processed := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		if order.RetryCount > 0 {
			if err := p.wait(ctx, p.retryDelay(order.RetryCount)); err != nil {
				break
			}
		}
		if err := p.submitOne(ctx, order); err == nil {
			processed++
		}
	}

	if p.notifier != nil && processed > 0 {
		p.notifier.QueueProcessed(processed)
	}
	return processed, nil
}

// submitOne отправляет один заказ. Возвращает nil только если заказ проведён
// (в том числе как повтор уже проведённого) и удалён из очереди.
func (p *Processor) submitOne(ctx context.Context, order *models.QueuedOrder) error {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return p.handleTransient(ctx, order, fmt.Errorf("obtain token: %w", err))
	}

	result, err := p.submitter.Submit(ctx, order.SettlementRequest(), token)
	if err == nil {
		if err := p.queue.Remove(ctx, order.ID); err != nil {
			return fmt.Errorf("remove settled order: %w", err)
		}
		if result.Duplicate {
			p.logger.Infow("order already settled on server", "id", order.ID, "client_order_id", order.ClientOrderID)
		} else {
			p.logger.Infow("order settled", "id", order.ID, "order_id", result.OrderID)
		}
		return nil
	}

	var bizErr *BusinessError
	if errors.As(err, &bizErr) {
		// Терминальный отказ: повторять бессмысленно, сервер ответит тем же.
		if mErr := p.queue.MoveToFailed(ctx, order, bizErr.Error()); mErr != nil {
			p.logger.Errorw("dead-letter failed", "id", order.ID, "error", mErr)
			return mErr
		}
		return err
	}

	return p.handleTransient(ctx, order, err)
}

// handleTransient засчитывает временный сбой: увеличивает счётчик попыток,
// запоминает ошибку и по исчерпании бюджета выводит заказ из очереди.
func (p *Processor) handleTransient(ctx context.Context, order *models.QueuedOrder, cause error) error {
	count, err := p.queue.IncrementRetry(ctx, order.ID)
	if err != nil {
		p.logger.Errorw("increment retry failed", "id", order.ID, "error", err)
		return err
	}
	if err := p.queue.RecordError(ctx, order.ID, cause.Error()); err != nil {
		p.logger.Errorw("record error failed", "id", order.ID, "error", err)
	}

	if count >= p.maxRetries {
		reason := fmt.Sprintf("retry budget exhausted after %d attempts: %v", count, cause)
		if mErr := p.queue.MoveToFailed(ctx, order, reason); mErr != nil {
			p.logger.Errorw("dead-letter failed", "id", order.ID, "error", mErr)
			return mErr
		}
		return cause
	}

	p.logger.Warnw("order submission failed, will retry", "id", order.ID, "attempt", count, "error", cause)
	return cause
}

// retryDelay считает паузу перед повторной отправкой: экспонента от числа
// попыток с верхней границей и случайной добавкой, чтобы клиенты не били в
// сервер синхронно.
func (p *Processor) retryDelay(retryCount int) time.Duration {
	delay := p.maxDelay
	if retryCount < 31 {
		if d := p.baseDelay << uint(retryCount); d > 0 && d < p.maxDelay {
			delay = d
		}
	}
	if p.jitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(p.jitterMax)))
	}
	return delay
}

func (p *Processor) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
