package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/mailer"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/router"
	"github.com/iliyamo/movie-ticket-booking/internal/scheduler"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db: %v", err)
	}
	store := repository.NewStore(db)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	var locker service.Locker = lock.Noop{}
	if rdb != nil {
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "lock", cfg.LockTTL, cfg.LockWait)
	} else {
		log.Printf("redis: unavailable; per-show lock, rate limit and cache disabled")
	}

	brokerURL := queue.BrokerURL()
	events := queue.NewPublisher(brokerURL)

	retry := service.RetryPolicy{MaxAttempts: cfg.Hold.MaxAttempts, BaseDelay: cfg.Hold.BaseDelay, MaxDelay: cfg.Hold.MaxDelay}
	reservations := service.NewReservations(store, locker, cfg.Hold.GraceWindow, retry)
	expiry := service.NewExpiry(store, locker, retry)

	gateway := payment.NewStripe(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret, nil)
	payments := service.NewPayments(store, gateway, events, cfg.Payment.Currency, cfg.Payment.CheckoutTTL, retry)
	var checkout handler.CheckoutStarter
	if cfg.Payment.SecretKey != "" {
		checkout = payments
		expiry.Sessions = gateway
	} else {
		log.Printf("payment: STRIPE_SECRET_KEY not set; bookings are created without checkout")
	}
	// Unsigned deliveries must never confirm a booking.
	var webhooks *handler.WebhookHandler
	if cfg.Payment.WebhookSecret != "" {
		webhooks = handler.NewWebhookHandler(gateway, payments)
	} else {
		log.Printf("payment: STRIPE_WEBHOOK_SECRET not set; payment webhook disabled")
	}

	consumer := queue.NewConsumer(brokerURL, nil, "logs")
	consumer.Recipients = cfg.SMTP.AnnounceTo
	consumer.Currency = cfg.Payment.Currency
	consumer.BookingLink = cfg.AppOrigin + "/movies"
	if smtp, err := mailer.NewSMTP(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}); err == nil {
		consumer.Mail = smtp
		consumer.Announcer = smtp
	} else {
		log.Printf("mailer: disabled: %v", err)
	}

	worker := scheduler.NewWorker("expiry-worker", store, func(ctx context.Context, j model.HoldJob) error {
		out, err := expiry.Fire(ctx, j.BookingID)
		if err == nil {
			log.Printf("expiry-worker: booking %d %s", j.BookingID, out)
		}
		return err
	}, scheduler.Config{
		Interval:   cfg.Expiry.Interval,
		Batch:      cfg.Expiry.Batch,
		Lease:      cfg.Expiry.Lease,
		MaxBackoff: cfg.Expiry.MaxBackoff,
	})

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	router.RegisterRoutes(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Health:    handler.Health(store),
		Bookings:  handler.NewBookingHandler(reservations, checkout, store, cfg.AppOrigin),
		Search:    handler.NewShowSearchHandler(store),
		Webhooks:  webhooks,
		Admin:     handler.NewAdminHandler(store, events),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Printf("shutdown complete")
}
