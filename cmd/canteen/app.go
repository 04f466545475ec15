package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/agamariel/canteen/internal/auth"
	"github.com/agamariel/canteen/internal/config"
	"github.com/agamariel/canteen/internal/handlers"
	"github.com/agamariel/canteen/internal/migrations"
	"github.com/agamariel/canteen/internal/services"
	"github.com/agamariel/canteen/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// App структура для управления приложением и его зависимостями.
type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	dbPool *pgxpool.Pool
	echo   *echo.Echo

	// Handlers
	userHandler   *handlers.UserHandler
	orderHandler  *handlers.OrderHandler
	walletHandler *handlers.WalletHandler
}

// NewApp создаёт и инициализирует новое приложение.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initDependencies()
	app.initServer()

	return app, nil
}

// initDatabase инициализирует подключение к базе данных и выполняет миграции.
func (app *App) initDatabase(ctx context.Context) error {
	if app.cfg.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}

	// Применение миграций
	app.logger.Info("running database migrations")
	sqlDB, err := sql.Open("pgx", app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to open database connection: %w", err)
	}
	defer sqlDB.Close()

	if err := migrations.Run(sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.logger.Info("migrations completed")

	// Подключение к базе данных через pgxpool
	dbPool, err := pgxpool.New(ctx, app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	app.dbPool = dbPool
	app.logger.Info("connected to database")

	return nil
}

// initDependencies инициализирует все зависимости приложения (storage, services, handlers).
func (app *App) initDependencies() {
	// Storage layer
	userStorage := storage.NewPostgresUserStorage(app.dbPool)
	walletStorage := storage.NewPostgresWalletStorage(app.dbPool)
	orderStorage := storage.NewPostgresOrderStorage(app.dbPool)
	stockStorage := storage.NewPostgresStockStorage(app.dbPool)
	transactionStorage := storage.NewPostgresTransactionStorage(app.dbPool)

	// Service layer
	userService := services.NewUserService(app.dbPool, userStorage, walletStorage, app.cfg.JWTSecret, app.cfg.TokenExpiration)
	orderService := services.NewOrderService(orderStorage)
	walletService := services.NewWalletService(app.dbPool, walletStorage, transactionStorage)
	settlementService := services.NewSettlementService(app.dbPool, orderStorage, stockStorage, walletStorage, transactionStorage, app.logger)

	// Handler layer
	app.userHandler = handlers.NewUserHandler(userService)
	app.orderHandler = handlers.NewOrderHandler(settlementService, orderService)
	app.walletHandler = handlers.NewWalletHandler(walletService)
}

// initServer инициализирует HTTP-сервер и настраивает маршруты.
func (app *App) initServer() {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	// Публичные маршруты (не требуют аутентификации)
	e.GET("/api/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.POST("/api/auth/register", app.userHandler.Register)
	e.POST("/api/auth/login", app.userHandler.Login)

	// Защищённые маршруты (требуют аутентификации)
	protected := e.Group("/api")
	protected.Use(auth.JWTMiddleware(app.cfg.JWTSecret))
	protected.POST("/orders", app.orderHandler.SubmitOrder)
	protected.GET("/orders", app.orderHandler.GetOrders)
	protected.GET("/wallet", app.walletHandler.GetBalance)
	protected.POST("/wallet/topup", app.walletHandler.TopUp)
	protected.GET("/wallet/transactions", app.walletHandler.GetTransactions)

	app.echo = e
}

// Start запускает приложение.
func (app *App) Start(ctx context.Context) error {
	app.logger.Infow("starting server", "address", app.cfg.RunAddress)
	if err := app.echo.Start(app.cfg.RunAddress); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

// Shutdown корректно завершает работу приложения.
func (app *App) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down server")

	if err := app.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if app.dbPool != nil {
		app.dbPool.Close()
	}

	app.logger.Info("server gracefully stopped")
	return nil
}
