package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/config"
	"github.com/joaosantosg/reserva-salas-uni/internal/holiday"
	httptransport "github.com/joaosantosg/reserva-salas-uni/internal/http"
	"github.com/joaosantosg/reserva-salas-uni/internal/logging"
	"github.com/joaosantosg/reserva-salas-uni/internal/messaging"
	"github.com/joaosantosg/reserva-salas-uni/internal/persistence/sqlstore"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reservas stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	store, err := openStore(ctx, cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	app, err := buildApp(ctx, cfg, store, time.Now, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.bootstrapAdmin(ctx, cfg); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("reservas API listening", "addr", server.Addr, "driver", cfg.DBDriver, "timezone", cfg.Timezone.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// openStore connects to the database and applies pending migrations.
func openStore(ctx context.Context, driver, dsn string, logger *slog.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, driver, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// App holds the wired services and the HTTP router.
type App struct {
	Router       *gin.Engine
	Users        *application.UserService
	Auth         *application.AuthService
	Blocks       *application.BlockService
	Rooms        *application.RoomService
	Semesters    *application.SemesterService
	Reservations *application.ReservationService
	Rules        *application.RecurringRuleService

	logger  *slog.Logger
	closers []func()
}

// Close releases the messaging clients opened by buildApp.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildApp(ctx context.Context, cfg config.Config, store *sqlstore.Store, now func() time.Time, logger *slog.Logger) (*App, error) {
	if now == nil {
		now = time.Now
	}
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	app := &App{logger: logger}
	repos := sqlstore.NewRepositories(store)

	users := newUserRepositoryAdapter(repos.Users)
	blocks := newBlockRepositoryAdapter(repos.Blocks)
	rooms := newRoomRepositoryAdapter(repos.Rooms)
	semesters := newSemesterRepositoryAdapter(repos.Semesters)
	rules := newRuleStoreAdapter(repos.Rules)
	reservations := newReservationStoreAdapter(repos.Reservations)

	notifier, err := app.buildNotifier(ctx, cfg, now)
	if err != nil {
		app.Close()
		return nil, err
	}
	audit := app.buildAudit(ctx, cfg, repos.Audit)

	engine := recurrence.NewEngine(loc, holidayCalendar(cfg.Holidays))
	tokens := application.NewTokenManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, now)

	app.Users = application.NewUserServiceWithLogger(users, application.HashPassword, uuid.NewString, now, logger)
	app.Auth = application.NewAuthServiceWithLogger(users, tokens, application.VerifyPassword, now, logger)
	app.Blocks = application.NewBlockServiceWithLogger(blocks, uuid.NewString, now, logger)
	app.Rooms = application.NewRoomServiceWithLogger(rooms, blocks, uuid.NewString, now, logger)
	app.Semesters = application.NewSemesterServiceWithLogger(semesters, uuid.NewString, now, logger)
	app.Reservations = application.NewReservationService(application.ReservationServiceDeps{
		Reservations: reservations,
		Rooms:        rooms,
		Users:        users,
		Notifier:     notifier,
		Audit:        audit,
		IDGenerator:  uuid.NewString,
		Now:          now,
		Logger:       logger,
	})
	app.Rules = application.NewRecurringRuleService(application.RecurringRuleServiceDeps{
		Rules:        rules,
		Reservations: reservations,
		Rooms:        rooms,
		Users:        users,
		Semesters:    semesters,
		Engine:       engine,
		Notifier:     notifier,
		Audit:        audit,
		IDGenerator:  uuid.NewString,
		Now:          now,
		BatchSize:    cfg.OccurrenceBatchSize,
		Logger:       logger,
	})

	app.Router = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(app.Auth, logger),
		Users:        httptransport.NewUserHandler(app.Users, logger),
		Blocks:       httptransport.NewBlockHandler(app.Blocks, logger),
		Rooms:        httptransport.NewRoomHandler(app.Rooms, logger),
		Semesters:    httptransport.NewSemesterHandler(app.Semesters, logger),
		Reservations: httptransport.NewReservationHandler(app.Reservations, logger),
		Rules:        httptransport.NewRuleHandler(app.Rules, logger),
		Calendars:    httptransport.NewCalendarHandler(app.Rooms, app.Reservations, app.Rules, now, logger),
		Tokens:       app.Auth,
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
	})
	return app, nil
}

// buildNotifier always logs notifications and additionally publishes them to
// MQTT when a broker is configured.
func (a *App) buildNotifier(ctx context.Context, cfg config.Config, now func() time.Time) (application.Notifier, error) {
	notifiers := messaging.FanoutNotifier{messaging.NewLogNotifier(a.logger)}
	if cfg.MQTTBroker == "" {
		return notifiers, nil
	}

	client, err := messaging.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect mqtt: %w", err)
	}
	a.closers = append(a.closers, func() { messaging.DisconnectMQTT(client) })
	a.logger.InfoContext(ctx, "publishing notifications to mqtt", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	return append(notifiers, messaging.NewMQTTNotifier(client, cfg.MQTTTopic, now, a.logger)), nil
}

// buildAudit stores audit entries in the database and mirrors them to a Redis
// stream when one is configured.
func (a *App) buildAudit(ctx context.Context, cfg config.Config, writer messaging.AuditWriter) application.AuditSink {
	sinks := messaging.FanoutAuditSink{messaging.NewStoreAuditSink(writer, uuid.NewString)}
	if cfg.RedisAddr == "" {
		return sinks
	}

	client := messaging.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.WarnContext(ctx, "redis unreachable, audit stream will retry per record", "addr", cfg.RedisAddr, "error", err)
	}
	return append(sinks, messaging.NewRedisAuditSink(client, cfg.RedisStream))
}

func (a *App) bootstrapAdmin(ctx context.Context, cfg config.Config) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if _, err := a.Users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap administrator: %w", err)
	}
	return nil
}

func holidayCalendar(name string) recurrence.HolidayCalendar {
	switch name {
	case config.HolidaysNone:
		return holiday.None{}
	case config.HolidaysBrazilOptional:
		return holiday.NewBrazil(true)
	default:
		return holiday.NewBrazil(false)
	}
}
