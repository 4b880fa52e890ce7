package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/config"
	"github.com/qwertys/qwertys-api/handlers"
	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/routes"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

const (
	appName                = "QWERTYS API"
	appVersion             = "1.0.0"
	connectionLogRetention = 90 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	utils.IsProduction = utils.DetectProduction()
	utils.LogLevel = utils.ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if utils.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("✅ Database connected successfully")

	if err := config.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	cipher, err := utils.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to init encryption:", err)
	}
	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	loc := cfg.Server.Location

	// Services
	userService := services.NewUserService(db, cipher)
	programmeService := services.NewProgrammeService(db, cipher)
	partenaireService := services.NewPartenaireService(db)
	testSiteService := services.NewTestSiteService(db, loc)
	testLigneService := services.NewTestLigneService(db, loc)
	alerteService := services.NewAlerteService(db)
	duplicateService := services.NewDuplicateService(db, loc)
	statsService := services.NewStatisticsService(testSiteService, testLigneService, alerteService, programmeService, loc)

	var completer services.Completer
	if claude := services.NewClaudeAIService(cfg.AI.APIKey, cfg.AI.Model); claude.Configured() {
		completer = claude
	} else {
		log.Println("⚠️ ANTHROPIC_API_KEY not set, AI insights disabled")
	}
	insightsService := services.NewInsightsService(statsService, completer)

	var (
		sender services.MessageSender
		mailer handlers.AlerteMailer
	)
	if cfg.Email.APIKey != "" {
		emailService := services.NewEmailService(cfg.Email.APIKey, cfg.Email.From, cfg.Server.FrontendURL)
		sender, mailer = emailService, emailService
	} else {
		log.Println("⚠️ RESEND_API_KEY not set, emails disabled")
	}
	messageService := services.NewMessageService(db, sender, partenaireService, programmeService, alerteService)

	wsHandler := handlers.NewWSHandler()
	defer wsHandler.Close()
	events := handlers.NewAlerteEvents(wsHandler, mailer, cfg.Email.AlertEmailTo)

	h := &routes.Handlers{
		Auth:        handlers.NewAuthHandler(userService, tokens),
		Users:       handlers.NewUserHandler(userService),
		Programmes:  handlers.NewProgrammeHandler(programmeService),
		Partenaires: handlers.NewPartenaireHandler(partenaireService),
		Duplicates:  handlers.NewDuplicateHandler(duplicateService, loc),
		TestsSite:   handlers.NewTestSiteHandler(testSiteService, events, loc),
		TestsLigne:  handlers.NewTestLigneHandler(testLigneService, events, loc),
		Alertes:     handlers.NewAlerteHandler(alerteService, events),
		Messages:    handlers.NewMessageHandler(messageService),
		Statistics:  handlers.NewStatisticsHandler(statsService, insightsService, loc),
		Exports:     handlers.NewExportHandler(testSiteService, testLigneService, alerteService, partenaireService, loc),
		WS:          wsHandler,
	}

	go scheduleConnectionLogPurge(userService)

	router := gin.New()
	router.Use(gin.Recovery())

	allowedOrigins := cfg.AllowedOrigins()
	log.Printf("🌍 CORS: Allowing origins:")
	for _, origin := range allowedOrigins {
		log.Printf("   - %s", origin)
	}

	corsConfig := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow))

	routes.Setup(router, h, middleware.AuthMiddleware(tokens, userService))

	router.GET("/health", func(c *gin.Context) {
		status, dbStatus := http.StatusOK, "ok"
		if err := db.PingContext(c.Request.Context()); err != nil {
			status, dbStatus = http.StatusServiceUnavailable, "unreachable"
		}
		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"database": dbStatus,
			"version":  appVersion,
			"time":     time.Now().Format(time.RFC3339),
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		utils.LogStartup(appName, appVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Forced shutdown: %v", err)
	}
}

func scheduleConnectionLogPurge(users *services.UserService) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	purgeConnectionLogs(users)
	for range ticker.C {
		purgeConnectionLogs(users)
	}
}

func purgeConnectionLogs(users *services.UserService) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := users.PurgeConnections(ctx, connectionLogRetention)
	if err != nil {
		log.Printf("❌ Connection log cleanup failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("🧹 Cleaned %d expired connection logs", n)
	}
}
