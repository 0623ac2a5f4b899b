package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chatneto/internal/auth"
	"chatneto/internal/config"
	"chatneto/internal/db"
	"chatneto/internal/handlers"
	"chatneto/internal/middleware"
	"chatneto/internal/observability"
	"chatneto/internal/rabbitmq"
	"chatneto/internal/realtime"
	"chatneto/internal/repositories"
	"chatneto/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracer(ctx, os.Getenv("OTLP_ENDPOINT"), "chatneto-relay", cfg.Environment)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if cfg.AMQPURL != "" {
		if publisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange); err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(publisher)
			defer publisher.Close()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.Exchange)
	defer auditPublisher.Close()
	emitter := telemetry.NewAuditEmitter(auditPublisher, "audit.chatneto", "chatneto-relay", cfg.Environment)

	chatRepo := repositories.NewChatRepo(database)
	profileRepo := repositories.NewProfileRepo(database)

	// No session store server-side; persistence belongs to embedded clients.
	authService := auth.NewService(database, cfg.JWTSecret, nil)

	notifier, err := realtime.NewPGNotifier(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to start notifier: %v", err)
	}
	defer notifier.Close()

	hub := realtime.NewHub()
	bridgeCtx, cancelBridge := context.WithCancel(ctx)
	defer cancelBridge()
	bridge, err := notifier.SubscribeAll(bridgeCtx)
	if err != nil {
		log.Fatalf("failed to subscribe notifier: %v", err)
	}
	go func() {
		for msg := range bridge.C {
			hub.Broadcast(msg.ChatID, msg)
		}
	}()

	relay := realtime.NewRelayHandler(hub, chatRepo, authService)
	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandler(profileRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chatneto-relay"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authService)

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/auth/signup", authHandler.SignUp)
	router.POST("/auth/signin", authHandler.SignIn)
	router.GET("/profiles/me", authMiddleware, profileHandler.Me)
	router.PATCH("/profiles/me", authMiddleware, profileHandler.UpdateMe)
	router.GET("/contacts", authMiddleware, profileHandler.Contacts)

	router.GET("/ws/chats/:chat_id", relay.Handle)

	handlers.RegisterDebugRoutes(router, emitter, cfg.Debug)

	if err := router.Run(cfg.RelayAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
