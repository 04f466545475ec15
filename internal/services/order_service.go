package services

import (
	"context"
	"fmt"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
)

// OrderService определяет операции чтения заказов.
type OrderService interface {
	GetParentOrders(ctx context.Context, parentID uuid.UUID) ([]*models.OrderResponse, error)
}

// OrderServiceImpl реализует OrderService.
type OrderServiceImpl struct {
	orders OrderStorage
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(orders OrderStorage) *OrderServiceImpl {
	return &OrderServiceImpl{orders: orders}
}

// GetParentOrders возвращает заказы родителя (новые первыми).
func (s *OrderServiceImpl) GetParentOrders(ctx context.Context, parentID uuid.UUID) ([]*models.OrderResponse, error) {
	orders, err := s.orders.GetByParentID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("get parent orders: %w", err)
	}

	resp := make([]*models.OrderResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]models.OrderItemResponse, 0, len(o.Items))
		for _, item := range o.Items {
			price, _ := item.PriceAtOrder.Float64()
			items = append(items, models.OrderItemResponse{
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				PriceAtOrder: price,
			})
		}

		total, _ := o.TotalAmount.Float64()
		resp = append(resp, &models.OrderResponse{
			OrderID:       o.ID,
			StudentID:     o.StudentID,
			Status:        string(o.Status),
			TotalAmount:   total,
			PaymentMethod: string(o.PaymentMethod),
			Items:         items,
			CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		})
	}

	return resp, nil
}
