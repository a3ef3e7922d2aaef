package main

import (
	"context"
	"errors"
	"log"
	"time"

	"payam-chat/config"
	"payam-chat/internal/handler"
	"payam-chat/internal/proxy"
	"payam-chat/internal/redis"
	"payam-chat/internal/repository"
	"payam-chat/internal/server"
	"payam-chat/internal/services"
	"payam-chat/internal/storage"
	"payam-chat/internal/websocket"
	"payam-chat/pkg/database"
	"payam-chat/pkg/logger"

	"github.com/jmoiron/sqlx"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppEnv)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redis.Ping(ctx, redisClient); err != nil {
		l.Warnf("Redis unavailable, realtime delivery degraded: %v", err)
	}

	publisher := redis.NewPublisher(redisClient)
	presenceStore := redis.NewPresenceStore(redisClient, publisher, cfg.PresenceTTL)
	rateLimits := redis.DefaultRateLimitConfig()
	if cfg.MessageRateLimit > 0 {
		rateLimits.MessageLimit = cfg.MessageRateLimit
	}
	limiter := redis.NewRateLimiter(redisClient, rateLimits)

	var blobs services.BlobStore
	s3Client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
		PresignTTL: cfg.S3PresignTTL,
	})
	if err != nil {
		l.Warnf("Attachment storage disabled: %v", err)
	} else {
		blobs = s3Client
	}

	clock := services.Clock(services.SystemClock)
	repos := repository.NewPostgresManager()
	access := proxy.NewAccessControl(repos.Conversations(db), repos.Groups(db))
	tokens := services.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)
	eventsPub := services.NewEventPublisher(publisher, l)

	identity := services.NewIdentityService(db, repos, presenceStore, clock, l)
	conversations := services.NewConversationService(db, repos, access, clock, l)
	messages := services.NewMessageService(db, repos, access, eventsPub, clock, l)
	tracker := services.NewDeliveryTracker(db, repos, access, eventsPub, clock, l)
	groups := services.NewGroupService(db, repos, access, tracker, eventsPub, clock, l)
	attachments := services.NewAttachmentService(blobs, cfg.MaxUploadBytes, l)
	admin := services.NewAdminService(
		db, repos,
		repository.NewAdminRepository(sqlx.NewDb(db, "pgx")),
		presenceStore, tokens,
		services.AdminCredentials{Username: cfg.AdminUsername, Password: cfg.AdminPassword},
		clock, l,
	)

	sweeper := services.NewPresenceSweeper(db, repos, presenceStore, cfg.PresenceTTL, clock, l)
	sweeper.Start()
	defer sweeper.Stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(redis.NewSubscriber(redisClient), hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Errorf("Redis bridge stopped: %v", err)
		}
	}()

	wsHandler := websocket.NewHandler(
		tokens, identity, tracker,
		websocket.NewChannelAuthorizer(access),
		hub,
		websocket.NewLogger(l.Logger),
	)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:          handler.NewAuthHandler(identity, tokens),
		Users:         handler.NewUserHandler(identity),
		Conversations: handler.NewConversationHandler(conversations, attachments),
		Messages:      handler.NewMessageHandler(messages, tracker, conversations, attachments),
		Groups:        handler.NewGroupHandler(groups, attachments),
		Admin:         handler.NewAdminHandler(admin),
		WebSocket:     wsHandler,
	}, server.Dependencies{
		Tokens:   tokens,
		Presence: identity,
		Limiter:  limiter,
		Clock:    clock,
		Health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		},
	})

	if err := srv.Start(); err != nil {
		l.Errorf("Server shutdown error: %v", err)
	}
}
