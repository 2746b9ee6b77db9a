package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"access-approval-api/config"
	"access-approval-api/controllers"
	"access-approval-api/middleware"
	"access-approval-api/routes"
	"access-approval-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}
	defer config.Logger.Sync() //nolint:errcheck

	// Initialize database
	config.InitDB()

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	dispatcher, closeDispatchers := buildDispatchers()
	defer closeDispatchers()

	emitter := services.NewEventEmitter(dispatcher, services.NewRecipientResolver(config.DB))
	handlers := routes.Handlers{
		AccessRequests: controllers.NewAccessRequestController(
			services.NewAccessRequestService(config.DB, emitter),
			services.NewTransitionService(config.DB, emitter),
			services.NewVisibilityResolver(config.DB),
		),
		Signatures: controllers.NewSignatureController(services.NewSignatureLedger(config.DB)),
	}

	// Create Gin router
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(middleware.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Setup routes
	routes.SetupRoutes(router, handlers)

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		config.Logger.Info("server starting",
			zap.String("port", port),
			zap.Bool("production", config.IsProduction()),
			zap.Strings("notify_channels", config.NotifyChannels()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	config.Logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		config.Logger.Error("server shutdown failed", zap.Error(err))
	}

	// Let in-flight notifications finish before the producers close.
	emitter.Wait()
}

// buildDispatchers wires the channels named in NOTIFY_CHANNELS. A channel that
// cannot be configured is skipped with a warning.
func buildDispatchers() (services.EventDispatcher, func()) {
	var (
		dispatchers services.MultiDispatcher
		closers     []func()
	)

	for _, channel := range config.NotifyChannels() {
		switch channel {
		case "log":
			dispatchers = append(dispatchers, services.NewLogDispatcher(config.Logger.Named("events")))
		case "inbox":
			dispatchers = append(dispatchers, services.NewInboxDispatcher(config.DB))
		case "mail":
			if !config.MailConfigured() {
				config.Logger.Warn("mail channel enabled but SMTP_HOST/SMTP_FROM are not set")
				continue
			}
			dispatchers = append(dispatchers, services.NewMailDispatcher(config.SendMail))
		case "kafka":
			producer, err := services.NewKafkaProducer(config.KafkaBrokers())
			if err != nil {
				config.Logger.Warn("kafka channel disabled", zap.Error(err))
				continue
			}
			closers = append(closers, func() {
				if err := producer.Close(); err != nil {
					config.Logger.Warn("kafka producer close failed", zap.Error(err))
				}
			})
			dispatchers = append(dispatchers, services.NewKafkaDispatcher(producer, config.KafkaTopic()))
		default:
			config.Logger.Warn("unknown notify channel", zap.String("channel", channel))
		}
	}

	return dispatchers, func() {
		for _, c := range closers {
			c()
		}
	}
}
