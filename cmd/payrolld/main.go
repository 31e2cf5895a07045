package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nukk-pain/smpain-HR-sub013/internal/application"
	"github.com/nukk-pain/smpain-HR-sub013/internal/config"
	httptransport "github.com/nukk-pain/smpain-HR-sub013/internal/http"
	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence/sqlite"
	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	tokenGenerator := func() string { return randomHex(32) }
	idGenerator := uuid.NewString
	now := time.Now

	employeeRepo := sqlite.NewEmployeeRepository(storage)
	payrollRepo := sqlite.NewPayrollRepository(storage)

	retryCfg := sqlite.DefaultRetryConfig()
	retry := func(ctx context.Context, fn func() error) error {
		return sqlite.WithRetry(ctx, retryCfg, fn)
	}

	parser := spreadsheet.NewParser(cfg.MaxUploadBytes)
	matcher := matching.NewMatcher(newDirectoryAdapter(employeeRepo), cfg.MatchConcurrency)
	validator := application.NewValidator(cfg.LargeAmountThreshold)
	store := application.NewPreviewStore(application.PreviewStoreConfig{
		BudgetBytes:         cfg.StagingBudgetBytes,
		SpillThresholdBytes: cfg.SpillThresholdBytes,
		SpillDir:            cfg.SpillDir,
		TTL:                 cfg.PreviewTTL,
	})

	uploadService := application.NewUploadService(parser, matcher, validator, store, payrollRepo, tokenGenerator, logger)
	commitService := application.NewCommitService(store, payrollRepo, idGenerator, now, retry, logger)
	entryService := application.NewEntryService(payrollRepo, logger)

	sweeper := application.NewSweeper(store, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	uploadHandler := httptransport.NewUploadHandler(uploadService, commitService, cfg.MaxUploadBytes, logger)
	entriesHandler := httptransport.NewEntriesHandler(entryService, logger)
	healthHandler := httptransport.NewHealthHandler(storage, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Uploads: uploadHandler,
		Entries: entriesHandler,
		Health:  healthHandler,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.UploadDeadline(10*time.Second, time.Second, 256<<10, 2*time.Minute),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("payroll API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// directoryAdapter exposes the employee repository as the matcher's read-only
// directory view.
type directoryAdapter struct {
	repo persistence.EmployeeRepository
}

func newDirectoryAdapter(repo persistence.EmployeeRepository) *directoryAdapter {
	return &directoryAdapter{repo: repo}
}

func (a *directoryAdapter) FindByCode(ctx context.Context, code string) ([]matching.Employee, error) {
	models, err := a.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return toMatchingEmployees(models), nil
}

func (a *directoryAdapter) FindByNameAndDepartment(ctx context.Context, name, department string) ([]matching.Employee, error) {
	models, err := a.repo.FindByNameAndDepartment(ctx, name, department)
	if err != nil {
		return nil, err
	}
	return toMatchingEmployees(models), nil
}

func (a *directoryAdapter) FindByName(ctx context.Context, name string) ([]matching.Employee, error) {
	models, err := a.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return toMatchingEmployees(models), nil
}

func toMatchingEmployees(models []persistence.Employee) []matching.Employee {
	if len(models) == 0 {
		return nil
	}
	employees := make([]matching.Employee, 0, len(models))
	for _, model := range models {
		employees = append(employees, matching.Employee{
			ID:         model.ID,
			Code:       model.Code,
			Name:       model.Name,
			Department: model.Department,
		})
	}
	return employees
}
