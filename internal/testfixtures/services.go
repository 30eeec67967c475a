package testfixtures

import (
	"log/slog"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/holiday"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// ServiceFactory constructs application services with deterministic
// identifiers, a controllable clock and a holiday-free UTC engine.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Engine      *recurrence.Engine
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Engine == nil {
		factory.Engine = recurrence.NewEngine(time.UTC, holiday.None{})
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) { factory.Clock = clock }
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) { factory.IDGenerator = generator }
}

// WithHolidays builds the engine for loc with the given holiday calendar.
func WithHolidays(loc *time.Location, holidays recurrence.HolidayCalendar) ServiceFactoryOption {
	return func(factory *ServiceFactory) { factory.Engine = recurrence.NewEngine(loc, holidays) }
}

// NewUserService builds a user service. Passwords are hashed with the
// production argon2 hasher.
func (f *ServiceFactory) NewUserService(users application.UserRepository, logger *slog.Logger) *application.UserService {
	return application.NewUserServiceWithLogger(users, application.HashPassword, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewRoomService builds a room service.
func (f *ServiceFactory) NewRoomService(rooms application.RoomRepository, blocks application.BlockRepository, logger *slog.Logger) *application.RoomService {
	return application.NewRoomServiceWithLogger(rooms, blocks, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewReservationService fills the identifier and clock of deps when unset.
func (f *ServiceFactory) NewReservationService(deps application.ReservationServiceDeps) *application.ReservationService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	return application.NewReservationService(deps)
}

// NewRuleService fills the identifier, clock and engine of deps when unset.
func (f *ServiceFactory) NewRuleService(deps application.RecurringRuleServiceDeps) *application.RecurringRuleService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Engine == nil {
		deps.Engine = f.Engine
	}
	return application.NewRecurringRuleService(deps)
}
