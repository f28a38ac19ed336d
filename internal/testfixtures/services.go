package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/spotevents/spot/internal/application"
)

// ServiceFactory builds application services wired to a shared deterministic
// clock and identifier sequence. Fields left empty in the deps passed to its
// methods are filled from the factory.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
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
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

func (f *ServiceFactory) defaults(idGen *func() string, now *func() time.Time, logger **slog.Logger) {
	if *idGen == nil {
		*idGen = f.IDGenerator.NextFunc()
	}
	if *now == nil {
		*now = f.Clock.NowFunc()
	}
	if *logger == nil {
		*logger = f.Logger
	}
}

// NewIdentityService builds an identity service. GenerateOTP defaults to a
// fixed "123456" so tests can complete verification flows.
func (f *ServiceFactory) NewIdentityService(deps application.IdentityServiceDeps) *application.IdentityService {
	f.defaults(&deps.IDGenerator, &deps.Now, &deps.Logger)
	if deps.GenerateOTP == nil {
		deps.GenerateOTP = func() (string, error) { return "123456", nil }
	}
	return application.NewIdentityService(deps)
}

// NewEventService builds an event service.
func (f *ServiceFactory) NewEventService(deps application.EventServiceDeps) *application.EventService {
	f.defaults(&deps.IDGenerator, &deps.Now, &deps.Logger)
	return application.NewEventService(deps)
}

// NewCheckInService builds a check-in service.
func (f *ServiceFactory) NewCheckInService(deps application.CheckInServiceDeps) *application.CheckInService {
	f.defaults(&deps.IDGenerator, &deps.Now, &deps.Logger)
	return application.NewCheckInService(deps)
}

// NewPaymentService builds a payment service. Ticket codes draw from their own
// "code" sequence.
func (f *ServiceFactory) NewPaymentService(deps application.PaymentServiceDeps) *application.PaymentService {
	f.defaults(&deps.IDGenerator, &deps.Now, &deps.Logger)
	if deps.TicketCodes == nil {
		deps.TicketCodes = f.IDGenerator.PrefixedFunc("code")
	}
	return application.NewPaymentService(deps)
}

// NewReportService builds a report service.
func (f *ServiceFactory) NewReportService(deps application.ReportServiceDeps) *application.ReportService {
	f.defaults(&deps.IDGenerator, &deps.Now, &deps.Logger)
	return application.NewReportService(deps)
}

// TicketServiceDeps captures dependencies for constructing a ticket service.
type TicketServiceDeps struct {
	Tickets application.TicketRepository
	Events  application.EventRepository
	QR      application.QREncoder
	Logger  *slog.Logger
}

// NewTicketService builds a ticket service.
func (f *ServiceFactory) NewTicketService(deps TicketServiceDeps) *application.TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = f.Logger
	}
	return application.NewTicketServiceWithLogger(deps.Tickets, deps.Events, deps.QR, logger)
}
