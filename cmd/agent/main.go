package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agamariel/canteen/internal/config"
	"github.com/agamariel/canteen/internal/logging"
	"github.com/agamariel/canteen/internal/models"
	"github.com/agamariel/canteen/internal/offline"
	"go.uber.org/zap"
)

// logSignals пишет сигналы очереди в журнал. Настольный клиент подменяет его
// всплывающими уведомлениями.
type logSignals struct {
	logger *zap.SugaredLogger
}

func (s *logSignals) OrderFailed(order *models.FailedOrder) {
	s.logger.Warnw("order moved to failed",
		"client_order_id", order.ClientOrderID,
		"reason", order.FailureReason,
	)
}

func (s *logSignals) QueueProcessed(processed int) {
	s.logger.Infow("orders synchronized", "count", processed)
}

func main() {
	cfg := config.LoadAgent(os.Args[1:])

	logger := logging.NewSugaredLogger()
	defer logger.Sync()

	if cfg.Login == "" || cfg.Password == "" {
		log.Fatal("AGENT_LOGIN and AGENT_PASSWORD are required")
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	signals := &logSignals{logger: logger}
	store := offline.NewStore(cfg.QueuePath, cfg.FailedCap, signals, logger)
	defer store.Close()

	client := offline.NewClient(cfg.ServerAddress, 10*time.Second)
	tokens := offline.NewLoginTokenSource(client, cfg.Login, cfg.Password)
	connectivity := offline.NewClientConnectivity(client, 2*time.Second)

	processor := offline.NewProcessor(store, client, tokens, connectivity, signals, offline.ProcessorOptions{
		PollInterval: cfg.PollInterval,
	}, logger)
	processor.Start(rootCtx)

	logger.Infow("agent started",
		"server", cfg.ServerAddress,
		"queue", cfg.QueuePath,
		"poll_interval", cfg.PollInterval,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("agent stopping")
	rootCancel()
}
