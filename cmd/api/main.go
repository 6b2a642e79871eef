package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"accounts-api/internal/config"
	"accounts-api/internal/db"
	"accounts-api/internal/email"
	"accounts-api/internal/event"
	apihttp "accounts-api/internal/http"
	"accounts-api/internal/repository"
	"accounts-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	accountRepo := repository.NewPgAccountRepository(pool)
	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	allocator := service.NewReferralAllocator(logger, accountRepo, cfg.ReferralCodeLength, cfg.ReferralMaxAttempts)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	otpLimiter := service.NewOTPRateLimiter(cfg.OTPRateWindow(), cfg.OTPRateMax)
	verifyLimiter := service.NewOTPRateLimiter(cfg.TwoFactorTTL(), cfg.OTPVerifyMaxFailures)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limiter", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.OTPRateWindow(), cfg.OTPRateMax)
			verifyLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.TwoFactorTTL(), cfg.OTPVerifyMaxFailures)
		}
		cancel()
	}

	var events service.EventPublisher = service.NoopEventPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := event.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
		defer producer.Close()
		events = producer
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.TwoFactorTTL())
	accountSvc := service.NewAccountService(logger, accountRepo, hasher, allocator, emailSender, otpLimiter, events).
		WithVerifyLimiter(verifyLimiter)

	authHandler := apihttp.NewAuthHandler(logger, accountSvc, jwtSvc)
	accountHandler := apihttp.NewAccountHandler(logger, accountSvc)
	router := apihttp.NewRouter(logger, authHandler, accountHandler, jwtSvc, pool)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
