package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"database/sql"

	"github.com/dkurbatov/kassa-ledger/internal/config"
	"github.com/dkurbatov/kassa-ledger/internal/handler"
	"github.com/dkurbatov/kassa-ledger/internal/repository"
	"github.com/dkurbatov/kassa-ledger/internal/service"
	"github.com/dkurbatov/kassa-ledger/internal/storage"
	"github.com/dkurbatov/kassa-ledger/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	store, err := newStore(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(store, logger, repository.DefaultDebounceWindow)
	svc := service.NewService(repo, logger)
	h := handler.NewHandler(svc)

	// Setup router
	r := mux.NewRouter()
	r.HandleFunc("/customers", h.ListCustomers).Methods("GET")
	r.HandleFunc("/customers", h.CreateCustomer).Methods("POST")
	r.HandleFunc("/customers/{id}", h.UpdateCustomer).Methods("PATCH")
	r.HandleFunc("/customers/{id}", h.DeleteCustomer).Methods("DELETE")
	r.HandleFunc("/payments", h.ListPayments).Methods("GET")
	r.HandleFunc("/payments", h.RecordPayment).Methods("POST")
	r.HandleFunc("/payments/{id}", h.UpdatePayment).Methods("PATCH")
	r.HandleFunc("/payments/{id}", h.DeletePayment).Methods("DELETE")
	r.HandleFunc("/stats", h.Stats).Methods("GET")
	r.HandleFunc("/export", h.Export).Methods("GET")
	r.HandleFunc("/import", h.Import).Methods("POST")
	r.HandleFunc("/clear", h.Clear).Methods("POST")

	// Scheduled jobs: daily XML backup and due-payment digest
	c := cron.New()
	if _, err := c.AddFunc("30 23 * * *", func() {
		writeBackup(cfg, svc, logger)
	}); err != nil {
		logger.Fatalf("Failed to schedule backup job: %v", err)
	}
	if cfg.RemindersEnabled() {
		sender := email.NewSender(cfg, logger)
		if _, err := c.AddFunc("0 9 * * *", func() {
			due := svc.DueCustomers(time.Now())
			if len(due) == 0 {
				return
			}
			if err := sender.SendDueDigest(cfg.OperatorEmail, due); err != nil {
				logger.Errorf("Failed to send due-payment digest: %v", err)
			}
		}); err != nil {
			logger.Fatalf("Failed to schedule reminder job: %v", err)
		}
	}
	c.Start()
	defer c.Stop()

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal, then flush the ledger before exit so a
	// pending debounced save is never lost.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown: %v", err)
	}
	svc.Flush()
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return storage.NewPostgresStore(db)
	default:
		return storage.NewFileStore(cfg.DataDir, cfg.StorageQuotaBytes)
	}
}

func writeBackup(cfg *config.Config, svc *service.Service, logger *logrus.Logger) {
	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		logger.Errorf("Failed to create backup directory: %v", err)
		return
	}
	name := filepath.Join(cfg.BackupDir, fmt.Sprintf("kassa-%s.xml", time.Now().Format("2006-01-02")))
	if err := os.WriteFile(name, []byte(svc.Export("xml")), 0o644); err != nil {
		logger.Errorf("Failed to write backup: %v", err)
		return
	}
	logger.Infof("Backup written: %s", name)
}
