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

	"github.com/halcyon-games/halcyon-game-backend/docs"
	"github.com/halcyon-games/halcyon-game-backend/internal/config"
	"github.com/halcyon-games/halcyon-game-backend/internal/database"
	"github.com/halcyon-games/halcyon-game-backend/internal/database/repository"
	"github.com/halcyon-games/halcyon-game-backend/internal/handlers"
	"github.com/halcyon-games/halcyon-game-backend/internal/identity"
	"github.com/halcyon-games/halcyon-game-backend/internal/router"
	"github.com/halcyon-games/halcyon-game-backend/internal/services/auth"
	"github.com/halcyon-games/halcyon-game-backend/internal/services/events"
	"github.com/halcyon-games/halcyon-game-backend/internal/services/report"
	"github.com/halcyon-games/halcyon-game-backend/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// @title Halcyon Game Backend Auth API
// @version 1.0
// @description JWT authentication API for the Halcyon game backend

// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter `Bearer ` followed by your JWT access token

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	docs.SwaggerInfo.BasePath = getEnv("BASE_PATH", "/api/v1")

	configureLogging()

	utils.InitSentry()

	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	authCfg := config.LoadAuthConfig()

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)

	identityProvider := identity.NewBcryptProvider(userRepo, authCfg.LockoutMaxAttempts, authCfg.LockoutDuration)
	signer := auth.NewTokenSigner(authCfg)

	// Auth events are optional: the service runs without a broker.
	var publisher auth.EventPublisher
	eventPublisher, err := events.NewPublisher()
	if err != nil {
		logrus.Warnf("Failed to initialize RabbitMQ: %v", err)
	} else {
		publisher = eventPublisher
		defer eventPublisher.Close()
	}

	authService := auth.NewAuthService(userRepo, tokenRepo, identityProvider, signer, publisher, authCfg)

	tokenCleanupService := auth.NewTokenCleanupService(tokenRepo, authCfg.PruneWindow)
	tokenCleanupService.Start()
	defer tokenCleanupService.Stop()

	reportService := report.NewService(userRepo, tokenRepo)

	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(userRepo, reportService)

	r := router.SetupRouter(authService, authHandler, adminHandler)

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: r,
	}

	go func() {
		logrus.Infof("Server starting on port %s", port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

func configureLogging() {
	logLevel := getEnv("LOG_LEVEL", "info")
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
