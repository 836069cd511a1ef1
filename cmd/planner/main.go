package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/config"
	"prod-planner/internal/metrics"
	"prod-planner/internal/service/adjustment"
	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/service/execution"
	generate "prod-planner/internal/service/generate-excel"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/service/recipes"
	"prod-planner/internal/service/refresh"
	"prod-planner/internal/service/stock"
	"prod-planner/internal/storage/memory"
	"prod-planner/internal/storage/mysql"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// Store - всё, что сервисам нужно от хранилища. Реализуют memory и mysql.
type Store interface {
	planning.Storage
	execution.Storage
	execution.Recorder
	adjustment.Storage
	adjustment.Recorder
	recipes.Storage
	stock.Storage
}

type services struct {
	planning   *planning.Service
	execution  *execution.Service
	adjustment *adjustment.Workflow
	recipes    *recipes.Service
	stock      *stock.Service
	excel      *generate.GenerateExcelService
	metrics    *metrics.Metrics
}

func main() {
	cfg := config.MustConfig()

	log := setupLogger(cfg.Env)

	// количества в JSON числами, как их присылает фронтенд
	decimal.MarshalJSONWithoutQuotes = true

	store, closeStore, err := openStorage(cfg, log)
	if err != nil {
		log.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	coord := coordinator.New()
	m := metrics.New()

	planningService := planning.New(
		log,
		store,
		capacity.New(cfg.Planning.DailyCapacityMinutes, cfg.Planning.SkipWeekends, cfg.Planning.SplitHorizonDays),
		coord,
		m,
	)

	adjustmentWorkflow, err := adjustment.New(log, store, store, coord, m, adjustment.Config{
		AutoDrawDelay:    cfg.Adjustment.AutoDrawDelay,
		StationID:        cfg.Adjustment.StationID,
		ContainerPattern: cfg.Adjustment.ContainerPattern,
	})
	if err != nil {
		log.Error("failed to init adjustments", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc := services{
		planning:   planningService,
		execution:  execution.New(log, store, store, planningService, coord, m),
		adjustment: adjustmentWorkflow,
		recipes:    recipes.New(log, store, coord),
		stock:      stock.New(log, store, planningService, coord),
		excel:      generate.NewGenerateService(planningService),
		metrics:    m,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := refresh.New(log, ctx)
	if _, err := runner.ScheduleShortageRefresh(cfg.Refresh.Schedule, planningService); err != nil {
		log.Error("failed to schedule shortage refresh", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// флаги могли устареть, пока сервис был остановлен
	refresh.RunOnce(ctx, log, planningService)
	runner.Start()

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, svc),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + 30*time.Second,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.Address), slog.String("storage", cfg.StorageType))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.String("error", err.Error()))
	}
	runner.Stop()

	log.Info("server stopped")
}

func openStorage(cfg *config.Config, log *slog.Logger) (Store, func(), error) {
	if cfg.StorageType == "memory" {
		log.Warn("in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	st, err := mysql.New(*cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}

	return st, func() {
		if err := st.Close(); err != nil {
			log.Error("failed to close db", slog.String("error", err.Error()))
		}
	}, nil
}

type dualHandler struct {
	coreHandler  slog.Handler
	errorHandler slog.Handler
}

func (h *dualHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.coreHandler.Enabled(ctx, lvl) || h.errorHandler.Enabled(ctx, lvl)
}

func (h *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error

	// Всегда пишем в основной вывод (stdout)
	if h.coreHandler.Enabled(ctx, r.Level) {
		err = h.coreHandler.Handle(ctx, r)
		if err != nil {
			return err
		}
	}

	// Ошибки дублируем в файл, сбой файла не мешает основному выводу
	if r.Level >= slog.LevelError && h.errorHandler.Enabled(ctx, r.Level) {
		_ = h.errorHandler.Handle(ctx, r.Clone())
	}

	return err
}

func (h *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithAttrs(attrs),
		errorHandler: h.errorHandler.WithAttrs(attrs),
	}
}

func (h *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithGroup(name),
		errorHandler: h.errorHandler.WithGroup(name),
	}
}

func setupLogger(env string) *slog.Logger {
	level := slog.LevelDebug
	if env == envProd {
		level = slog.LevelInfo
	}

	var coreHandler slog.Handler
	switch env {
	case envDev:
		coreHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case envLocal, envProd:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	errorFile, err := os.OpenFile("errors.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Warn("Cannot open error log file", "error", err)
		return slog.New(coreHandler)
	}

	errorHandler := slog.NewTextHandler(errorFile, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	return slog.New(&dualHandler{
		coreHandler:  coreHandler,
		errorHandler: errorHandler,
	})
}
