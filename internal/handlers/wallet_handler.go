package handlers

import (
	"errors"
	"net/http"

	"github.com/agamariel/canteen/internal/auth"
	"github.com/agamariel/canteen/internal/models"
	"github.com/agamariel/canteen/internal/services"
	"github.com/agamariel/canteen/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// WalletHandler обрабатывает запросы к кошельку.
type WalletHandler struct {
	walletService services.WalletService
}

func NewWalletHandler(walletService services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// GetBalance обрабатывает GET /api/wallet.
func (h *WalletHandler) GetBalance(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	balance, err := h.walletService.GetBalance(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrWalletNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "wallet not found")
		}
		c.Logger().Errorf("failed to get balance: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, balance)
}

// TopUp обрабатывает POST /api/wallet/topup.
func (h *WalletHandler) TopUp(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.TopUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	amount := decimal.NewFromFloat(req.Amount)
	balance, err := h.walletService.TopUp(c.Request().Context(), userID, amount)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTopUpAmount) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		if errors.Is(err, storage.ErrWalletNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "wallet not found")
		}
		c.Logger().Errorf("failed to top up wallet: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, balance)
}

// GetTransactions обрабатывает GET /api/wallet/transactions.
func (h *WalletHandler) GetTransactions(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	list, err := h.walletService.GetTransactions(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("failed to get transactions: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if len(list) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, list)
}
