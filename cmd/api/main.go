package main

import (
	"context"
	"fmt"
	"time"

	"seha-backend/config"
	"seha-backend/internal/handler"
	"seha-backend/internal/middleware"
	internalredis "seha-backend/internal/redis"
	"seha-backend/internal/repository"
	"seha-backend/internal/services"
	"seha-backend/internal/websocket"
	"seha-backend/pkg/database"
	"seha-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "production" {
		mode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.New(mode)
	logger.SetGlobalLogger(log)

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Errorf("database: %v", err)
		panic(err)
	}
	defer pool.Close()

	if err := database.ApplyRawMigrations(ctx, pool, "migrations"); err != nil {
		log.Errorf("migrations: %v", err)
		panic(err)
	}

	redisClient := internalredis.NewClient(internalredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	listCache := internalredis.NewAdminListCache(redisClient, time.Duration(cfg.AdminListTTLSec)*time.Second)
	limiter := internalredis.NewRateLimiter(redisClient, internalredis.RateLimitConfig{
		Limit:  cfg.HelpRateLimit,
		Window: time.Duration(cfg.HelpRateWindowSec) * time.Second,
	})

	hub := websocket.NewHub()
	go hub.Run(ctx)
	gateway := websocket.NewGateway(hub, log)

	authService := services.NewAuthService(cfg.JWTSecret)
	store := repository.NewConversationRepository(pool)
	helpService := services.NewHelpService(store, listCache, gateway, log)

	helpHandler := handler.NewHelpHandler(helpService, log)
	wsHandler := websocket.NewHandler(authService, helpService, hub, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(log))

	r.GET("/ws/help", wsHandler.Connect)

	api := r.Group("/api/help")
	api.Use(middleware.OptionalAuth(authService))
	api.Use(middleware.HelpRateLimit(limiter, log))
	{
		api.POST("/conversations", helpHandler.Create)
		api.POST("/conversations/:id/messages", helpHandler.Append)
		api.GET("/conversations/me", middleware.RequireAuth(authService), helpHandler.GetMine)
		api.GET("/conversations/anon/:anonId", helpHandler.GetByAnonID)
		api.GET("/conversations/:id", helpHandler.GetOne)

		admin := api.Group("/conversations")
		admin.Use(middleware.RequireAuth(authService), middleware.RequireAdmin())
		{
			admin.GET("/admin/list", helpHandler.AdminList)
			admin.PUT("/:id/mark-read", helpHandler.MarkRead)
			admin.PUT("/:id/close", helpHandler.Close)
			admin.DELETE("/:id", helpHandler.Delete)
			admin.DELETE("/:id/messages/:mid", helpHandler.DeleteMessage)
		}
	}

	log.Infof("Starting server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Errorf("server: %v", err)
		panic(err)
	}
}
