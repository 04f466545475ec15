package handlers

import (
	"errors"
	"net/http"

	"github.com/agamariel/canteen/internal/models"
	"github.com/agamariel/canteen/internal/services"
	"github.com/agamariel/canteen/internal/storage"
	"github.com/labstack/echo/v4"
)

// UserHandler обрабатывает HTTP-запросы для работы с учётными записями.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler создаёт новый экземпляр UserHandler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Register обрабатывает POST /api/auth/register.
func (h *UserHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	user, token, err := h.userService.Register(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCredentials) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, storage.ErrLoginExists) {
			return echo.NewHTTPError(http.StatusConflict, "login already exists")
		}
		c.Logger().Errorf("failed to register user: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	// Токен возвращается в теле: клиентом выступает агент синхронизации
	return c.JSON(http.StatusOK, models.AuthResponse{
		UserID: user.ID,
		Login:  user.Login,
		Token:  token,
	})
}

// Login обрабатывает POST /api/auth/login.
func (h *UserHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	user, token, err := h.userService.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCredentials) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, services.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
		}
		c.Logger().Errorf("failed to login user: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, models.AuthResponse{
		UserID: user.ID,
		Login:  user.Login,
		Token:  token,
	})
}
