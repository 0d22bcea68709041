package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/db"
	"dm-service/internal/handlers"
	"dm-service/internal/identity"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), "dm-service", getEnv("OTLP_ENDPOINT", ""))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	amqpURL := getEnv("AMQP_URL", "")
	exchange := getEnv("AMQP_EXCHANGE", "dm_events")
	if publisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("observability events disabled: %v", err)
	} else {
		observability.SetPublisher(publisher)
		defer publisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AMQP_AUDIT_EXCHANGE", "audit"))
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.dm", "dm-service", getEnv("ENVIRONMENT", "dev"))

	provider := identity.NewHMACProvider(getEnv("TOKEN_SECRET", "dev-secret"))

	messageRepo := repositories.NewMessageRepo(database)
	peerRepo := repositories.NewPeerRepo(database)

	hub := ws.NewHub()
	wsHandler := ws.NewHandler(hub, provider, peerRepo)

	authHandler := handlers.NewAuthHandler(peerRepo, provider, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, peerRepo, audit)
	peerHandler := handlers.NewPeerHandler(peerRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("dm-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(provider)

	router.POST("/login", authHandler.Login)
	router.GET("/peers", authMiddleware, peerHandler.ListPeers)
	router.GET("/messages/:peer_id", authMiddleware, messageHandler.GetHistory)
	router.POST("/messages", authMiddleware, messageHandler.RecordMessage)
	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, hub, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
