package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/calbook/calbook/libs/auth"
	"github.com/calbook/calbook/libs/config"
	"github.com/calbook/calbook/libs/db"
	"github.com/calbook/calbook/libs/httpx"
	"github.com/calbook/calbook/libs/kafkax"
	otelx "github.com/calbook/calbook/libs/otel"
	"github.com/calbook/calbook/libs/runtime"
	"github.com/calbook/calbook/libs/sealer"
	"github.com/calbook/calbook/services/booking-service/internal/availability"
	"github.com/calbook/calbook/services/booking-service/internal/booking"
	"github.com/calbook/calbook/services/booking-service/internal/calendar"
	"github.com/calbook/calbook/services/booking-service/internal/handlers"
	"github.com/calbook/calbook/services/booking-service/internal/outbox"
	"github.com/calbook/calbook/services/booking-service/internal/reservation"
	"github.com/calbook/calbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("dotenv load failed", "err", err)
	}

	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)
	if err := run(logger, service); err != nil {
		logger.Error("booking-service exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, service string) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	encKey, err := config.RequiredString("TOKEN_ENCRYPTION_KEY")
	if err != nil {
		return err
	}
	tokenSealer, err := sealer.FromHex(encKey)
	if err != nil {
		return err
	}
	hours, err := workingHours()
	if err != nil {
		return err
	}
	verifier, err := newVerifier()
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	reservationTTL := config.Seconds("RESERVATION_TTL_SECONDS", 30*time.Second)
	perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var (
		locker      reservation.Locker
		rateLimitMW httpx.Middleware
	)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		locker = reservation.NewRedisLocker(rdb, reservationTTL, config.String("RESERVATION_PREFIX", ""))
		rl := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", ""))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("redis enabled for reservations and rate limiting", "redis_addr", addr, "per_minute", perMinute)
	} else {
		locker = reservation.NewMemoryLocker(reservationTTL)
		rateLimitMW = httpx.NewRateLimiter(perMinute).Middleware()
		logger.Info("using in-process reservations and rate limiting", "per_minute", perMinute)
	}

	provider := calendar.NewGoogle(calendar.GoogleConfig{
		ClientID:     config.String("GOOGLE_CLIENT_ID", ""),
		ClientSecret: config.String("GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  config.String("GOOGLE_REDIRECT_URL", ""),
		Timeout:      config.Seconds("GOOGLE_TIMEOUT_SECONDS", 15*time.Second),
	})

	outboxRepo := outbox.NewRepository()
	users := storage.NewUserRepository(pool, tokenSealer)
	appts := storage.NewAppointmentRepository(pool, outboxRepo)
	engine := booking.NewEngine(users, appts, provider, locker, hours, logger)

	brokers := config.List("KAFKA_BROKERS")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	if publisher.Enabled() {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true})
	}
	go publisher.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.New(engine, users, logger).Register(mux, auth.Require(verifier))

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			ExposedHeaders:   []string{httpx.RequestIDHeader},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 64<<10))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second)),
		rateLimitMW,
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.Serve(ctx, srv, logger, 10*time.Second)
	return nil
}

func workingHours() (availability.WorkingHours, error) {
	loc, err := time.LoadLocation(config.String("WORKING_HOURS_TZ", "UTC"))
	if err != nil {
		return availability.WorkingHours{}, err
	}
	wh := availability.DefaultWorkingHours(loc)
	wh.StartHour = config.Int("WORKDAY_START_HOUR", wh.StartHour)
	wh.EndHour = config.Int("WORKDAY_END_HOUR", wh.EndHour)
	wh.Slot = time.Duration(config.Int("SLOT_MINUTES", 60)) * time.Minute
	return wh, wh.Validate()
}

func newVerifier() (*auth.Verifier, error) {
	secret := config.String("JWT_SECRET", "")
	var jwks *auth.JWKSClient
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		jwks = auth.NewJWKSClient(url, config.Seconds("JWKS_CACHE_SECONDS", 5*time.Minute), nil)
	}
	if secret == "" && jwks == nil {
		return nil, errors.New("JWT_SECRET or JWKS_URL is required")
	}
	return auth.NewVerifier(secret, jwks), nil
}
