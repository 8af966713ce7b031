package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopcore/orderpay/internal/logger"
	"github.com/shopcore/orderpay/internal/notify"
	"github.com/shopcore/orderpay/internal/order"
	"github.com/shopcore/orderpay/internal/payment"
	"github.com/shopcore/orderpay/internal/router"
	storage "github.com/shopcore/orderpay/internal/storage/postgres"
	"github.com/shopcore/orderpay/internal/user"
)

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	store, err := storage.NewPostgresStorage(cfg.DatabaseConnection)
	if err != nil {
		log.Fatalf("Failed to initialize Postgres storage: %v", err)
	}
	pingCtx, cancelPing := context.WithTimeout(appCtx, 5*time.Second)
	defer cancelPing()
	if err := store.Ping(pingCtx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close storage: %v", err)
		}
	}()

	sink := &notify.HTTPSink{
		Client:  &http.Client{Timeout: 5 * time.Second},
		Address: cfg.NotifyAddress,
	}
	dispatcher := notify.NewDispatcher(sink, cfg.NotifyWorkers)
	go dispatcher.Run(appCtx)

	processor := &payment.HTTPProcessorClient{
		Client:  &http.Client{Timeout: cfg.ProcessorTimeout},
		BaseURL: cfg.ProcessorAddress,
		APIKey:  cfg.ProcessorAPIKey,
	}

	userSvc := user.NewService(store, []byte(cfg.JWTSecret), cfg.JWTTTL)
	userHandler := user.NewHandler(userSvc)

	orderSvc := order.NewService(store, dispatcher)
	orderHandler := order.NewHandler(orderSvc)

	paymentSvc := payment.NewService(store, store, processor, dispatcher, cfg.Currency)
	paymentHandler := payment.NewHandler(paymentSvc)

	r := router.NewRouter(userHandler, orderHandler, paymentHandler, []byte(cfg.JWTSecret), store, cfg.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	cancelApp()

	log.Println("Server stopped gracefully")
	return nil
}
