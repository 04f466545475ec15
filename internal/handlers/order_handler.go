package handlers

import (
	"errors"
	"net/http"

	"github.com/agamariel/canteen/internal/auth"
	"github.com/agamariel/canteen/internal/models"
	"github.com/agamariel/canteen/internal/services"
	"github.com/agamariel/canteen/internal/storage"
	"github.com/labstack/echo/v4"
)

// OrderHandler обрабатывает запросы, связанные с заказами.
type OrderHandler struct {
	settlement services.SettlementService
	orders     services.OrderService
}

func NewOrderHandler(settlement services.SettlementService, orders services.OrderService) *OrderHandler {
	return &OrderHandler{settlement: settlement, orders: orders}
}

// SubmitOrder обрабатывает POST /api/orders.
// Повтор с тем же client_order_id возвращает 200 и уже созданный заказ.
func (h *OrderHandler) SubmitOrder(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.SettlementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   models.ErrorKindValidation,
			Message: "invalid request format",
		})
	}

	// Родитель берётся из токена, а не из тела запроса
	req.ParentID = userID

	result, err := h.settlement.Settle(c.Request().Context(), &req)
	if err != nil {
		return h.mapSettlementError(c, err)
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// GetOrders обрабатывает GET /api/orders.
func (h *OrderHandler) GetOrders(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	orders, err := h.orders.GetParentOrders(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("failed to get orders: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if len(orders) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, orders)
}

// mapSettlementError транслирует ошибку проведения в HTTP-ответ с
// машинно-читаемым кодом. На эти коды опирается классификация ошибок в
// клиентской очереди.
func (h *OrderHandler) mapSettlementError(c echo.Context, err error) error {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   models.ErrorKindValidation,
			Message: vErr.Reason,
		})
	case errors.Is(err, storage.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   models.ErrorKindInsufficientStock,
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrProductUnavailable):
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   models.ErrorKindProductUnavailable,
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrInsufficientBalance):
		return c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Error:   models.ErrorKindInsufficientBalance,
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrConcurrentModification):
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   models.ErrorKindConcurrentModification,
			Message: err.Error(),
		})
	default:
		c.Logger().Errorf("settlement failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   models.ErrorKindInternal,
			Message: "internal server error",
		})
	}
}
