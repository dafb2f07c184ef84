package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kaif91/order-services/orders-service/config"
	"github.com/kaif91/order-services/orders-service/handlers"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/models"
)

// estore runs the full order workflow in one process with seeded demo
// data: a product with stock and a user with payment details on file.
func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := config.BuildDependencies(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build dependencies: %v", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Printf("Error closing dependencies: %v", err)
		}
	}()

	if deps.KafkaScheduler != nil {
		go deps.KafkaScheduler.Run(ctx, time.Second)
	}

	productID, userID, err := seedDemoData(ctx, deps)
	if err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	fmt.Printf("estore running on port %s\n", cfg.Port)
	fmt.Printf("demo product: %s\n", productID)
	fmt.Printf("demo user:    %s\n", userID)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", handlers.NewMetricsHandler())
	deps.OrderHandlers.RegisterRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}

func seedDemoData(ctx context.Context, deps *config.Dependencies) (models.ID, models.ID, error) {
	productID := models.GenerateUUID()
	if err := deps.StockStore.SetStock(ctx, productID, 100); err != nil {
		return "", "", err
	}

	userID := models.GenerateUUID()
	err := deps.UserRegistry.Save(ctx, &contracts.User{
		UserID:    userID,
		FirstName: "Sergey",
		LastName:  "Kargopolov",
		PaymentDetails: contracts.PaymentDetails{
			CardNumber:      "123Card",
			ValidUntilMonth: 12,
			ValidUntilYear:  2030,
			Name:            "Sergey Kargopolov",
		},
	})
	if err != nil {
		return "", "", err
	}

	return productID, userID, nil
}
