package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueuedItems хранит позиции отложенного заказа одной JSON-колонкой sqlite.
type QueuedItems []SettlementItem

// Value сериализует позиции для записи в базу.
func (qi QueuedItems) Value() (driver.Value, error) {
	data, err := json.Marshal(qi)
	if err != nil {
		return nil, fmt.Errorf("marshal queued items: %w", err)
	}
	return string(data), nil
}

// Scan читает позиции из базы.
func (qi *QueuedItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, qi)
	case string:
		return json.Unmarshal([]byte(v), qi)
	case nil:
		*qi = nil
		return nil
	default:
		return fmt.Errorf("unsupported queued items type %T", src)
	}
}

// QueuedOrder - заказ, отложенный в локальную очередь до появления связи.
// Переживает перезапуск процесса: хранится в sqlite-файле очереди.
type QueuedOrder struct {
	ID            uuid.UUID     `gorm:"type:text;primaryKey" json:"id"`
	ParentID      uuid.UUID     `gorm:"type:text;not null" json:"parent_id"`
	StudentID     uuid.UUID     `gorm:"type:text;not null" json:"student_id"`
	ClientOrderID string        `gorm:"not null" json:"client_order_id"`
	Items         QueuedItems   `gorm:"type:text;not null" json:"items"`
	PaymentMethod PaymentMethod `gorm:"not null" json:"payment_method"`
	Notes         string        `json:"notes,omitempty"`
	ScheduledFor  *time.Time    `json:"scheduled_for,omitempty"`
	QueuedAt      time.Time     `gorm:"index;not null" json:"queued_at"`
	RetryCount    int           `gorm:"not null;default:0" json:"retry_count"`
	LastError     string        `json:"last_error,omitempty"`
}

// TableName задаёт имя таблицы очереди.
func (QueuedOrder) TableName() string { return "queued_orders" }

// FailedOrder - заказ, выведенный из активной очереди после исчерпания
// попыток или терминальной бизнес-ошибки. Хранится в ограниченном буфере.
type FailedOrder struct {
	ID            uuid.UUID     `gorm:"type:text;primaryKey" json:"id"`
	ParentID      uuid.UUID     `gorm:"type:text;not null" json:"parent_id"`
	StudentID     uuid.UUID     `gorm:"type:text;not null" json:"student_id"`
	ClientOrderID string        `gorm:"not null" json:"client_order_id"`
	Items         QueuedItems   `gorm:"type:text;not null" json:"items"`
	PaymentMethod PaymentMethod `gorm:"not null" json:"payment_method"`
	Notes         string        `json:"notes,omitempty"`
	ScheduledFor  *time.Time    `json:"scheduled_for,omitempty"`
	QueuedAt      time.Time     `gorm:"not null" json:"queued_at"`
	RetryCount    int           `gorm:"not null" json:"retry_count"`
	FailedAt      time.Time     `gorm:"index;not null" json:"failed_at"`
	FailureReason string        `gorm:"not null" json:"failure_reason"`
}

// TableName задаёт имя таблицы неуспешных заказов.
func (FailedOrder) TableName() string { return "failed_orders" }

// SettlementRequest собирает запрос на проведение из отложенного заказа.
func (q *QueuedOrder) SettlementRequest() *SettlementRequest {
	items := make([]SettlementItem, len(q.Items))
	copy(items, q.Items)
	return &SettlementRequest{
		ParentID:      q.ParentID,
		StudentID:     q.StudentID,
		ClientOrderID: q.ClientOrderID,
		Items:         items,
		PaymentMethod: q.PaymentMethod,
		Notes:         q.Notes,
		ScheduledFor:  q.ScheduledFor,
	}
}
