package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/kaif91/order-services/orders-service/application"
	"github.com/kaif91/order-services/orders-service/handlers"
	"github.com/kaif91/order-services/orders-service/infrastructure"
	"github.com/kaif91/order-services/orders-service/query"
	"github.com/kaif91/order-services/orders-service/saga"
	paymentsapp "github.com/kaif91/order-services/payments-service/application"
	paymentshandlers "github.com/kaif91/order-services/payments-service/handlers"
	productsapp "github.com/kaif91/order-services/products-service/application"
	productshandlers "github.com/kaif91/order-services/products-service/handlers"
	"github.com/kaif91/order-services/products-service/stock"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/deadline"
	sharedinfra "github.com/kaif91/order-services/shared/infrastructure"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/telemetry"
	users "github.com/kaif91/order-services/users-service"
	usershandlers "github.com/kaif91/order-services/users-service/handlers"
)

type Dependencies struct {
	// Messaging
	Bus *messaging.MemoryBus
	// EventPublisher is what every component publishes through: the bus
	// alone on the memory backend, bus plus SNS on the sns backend
	EventPublisher messaging.Publisher
	SNSPublisher   *sharedinfra.SNSPublisherAdapter
	SQSSubscriber  *sharedinfra.SQSSubscriberAdapter

	// Storage
	DB    *sqlx.DB
	Redis *redis.Client

	// Write side
	EventStore      messaging.EventStore
	OrderRepository *infrastructure.EventSourcedOrderRepository
	CreateOrder     *application.CreateOrder
	ApproveOrder    *application.ApproveOrder
	RejectOrder     *application.RejectOrder

	// Read side
	SummaryRepository query.SummaryRepository
	Projector         *query.Projector
	FindOrderHandler  *query.FindOrderHandler

	// Saga
	SagaStore         saga.Store
	DeadlineScheduler deadline.Scheduler
	TimerScheduler    *deadline.TimerScheduler
	KafkaScheduler    *sharedinfra.KafkaScheduler
	Orchestrator      *saga.Orchestrator

	// Collaborator services
	StockStore   stock.Store
	UserRegistry users.Registry

	// HTTP
	OrderHandlers *handlers.OrderHandlers

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()

	// Logging
	Logger zerolog.Logger
}

// BuildDependencies wires the whole order workflow onto one in-process
// bus. Storage and deadline backends are selected by configuration;
// everything defaults to in-memory so a local run needs no
// infrastructure.
func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{
		Bus:    messaging.NewMemoryBus(),
		Logger: zerolog.New(os.Stderr).With().Timestamp().Str("service", config.ServiceName).Logger(),
	}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.NewConfigForService(config.ServiceName, config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			deps.Logger.Warn().Err(err).Msg("failed to initialize telemetry")
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Event transport. The sns backend publishes every event to SNS as
	// well as the local bus, and bridges events arriving on the SQS
	// queue (published by other processes) onto the local bus.
	deps.EventPublisher = deps.Bus
	if config.Messaging.EventBackend == "sns" {
		snsPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
		if err != nil {
			return nil, fmt.Errorf("failed to build SNS publisher: %w", err)
		}
		deps.SNSPublisher = snsPublisher
		deps.EventPublisher = messaging.NewMultiPublisher(deps.Bus, snsPublisher)

		sqsSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to build SQS subscriber: %w", err)
		}
		deps.SQSSubscriber = sqsSubscriber
		relay := messaging.EventHandlerFunc(func(ctx context.Context, event *messaging.Event) error {
			return deps.Bus.Publish(ctx, event)
		})
		if err := sqsSubscriber.Subscribe(ctx, "#", relay); err != nil {
			return nil, fmt.Errorf("failed to start SQS subscriber: %w", err)
		}
	}

	// Storage backends
	switch config.Saga.StoreBackend {
	case "postgres":
		if err := deps.connectDatabase(config); err != nil {
			return nil, err
		}
		deps.SagaStore = infrastructure.NewPostgresSagaStore(deps.DB)
	case "redis":
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		deps.SagaStore = infrastructure.NewRedisSagaStore(deps.Redis, config.Saga.StoreTTL)
	default:
		deps.SagaStore = saga.NewMemoryStore()
	}

	if deps.DB != nil {
		deps.EventStore = sharedinfra.NewPostgresEventStore(deps.DB)
		deps.SummaryRepository = infrastructure.NewPostgresSummaryRepository(deps.DB)
	} else {
		deps.EventStore = sharedinfra.NewMemoryEventStore()
		deps.SummaryRepository = query.NewMemorySummaryRepository()
	}

	// Write side
	deps.OrderRepository = infrastructure.NewEventSourcedOrderRepository(deps.EventStore)
	deps.CreateOrder = application.NewCreateOrder(deps.OrderRepository, deps.EventPublisher)
	deps.ApproveOrder = application.NewApproveOrder(deps.OrderRepository, deps.EventPublisher)
	deps.RejectOrder = application.NewRejectOrder(deps.OrderRepository, deps.EventPublisher)

	orderCommands := handlers.NewOrderCommandHandlers(deps.CreateOrder, deps.ApproveOrder, deps.RejectOrder)
	if err := orderCommands.Register(deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to register order command handlers: %w", err)
	}

	// Read side
	deps.Projector = query.NewProjector(deps.SummaryRepository, deps.Logger)
	if err := deps.Projector.Register(ctx, deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to register projector: %w", err)
	}
	deps.FindOrderHandler = query.NewFindOrderHandler(deps.SummaryRepository)
	if err := deps.Bus.RegisterQueryHandler(contracts.FindOrderQueryType, deps.FindOrderHandler); err != nil {
		return nil, fmt.Errorf("failed to register find order handler: %w", err)
	}

	// Collaborator services
	deps.StockStore = stock.NewMemoryStore()
	if deps.Redis != nil {
		deps.StockStore = stock.NewRedisStore(deps.Redis)
	}
	reserveProduct := productsapp.NewReserveProduct(deps.StockStore, deps.EventPublisher, deps.Logger)
	cancelReservation := productsapp.NewCancelReservation(deps.StockStore, deps.EventPublisher, deps.Logger)
	if err := productshandlers.NewProductCommandHandlers(reserveProduct, cancelReservation).Register(deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to register product command handlers: %w", err)
	}

	processPayment := paymentsapp.NewProcessPayment(deps.EventPublisher, deps.Logger)
	if err := paymentshandlers.NewPaymentCommandHandlers(processPayment).Register(deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to register payment command handlers: %w", err)
	}

	deps.UserRegistry = users.NewMemoryRegistry()
	if err := usershandlers.NewUserQueryHandlers(deps.UserRegistry, deps.Logger).Register(deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to register user query handlers: %w", err)
	}

	// Saga
	notifier := saga.NewNotifier(deps.Bus, deps.Logger)
	tracer := otel.Tracer(config.ServiceName)

	switch config.Saga.DeadlineBackend {
	case "kafka":
		deps.KafkaScheduler = sharedinfra.NewKafkaScheduler(
			config.Kafka.Brokers,
			config.Kafka.DelayTopic,
			config.ServiceName+"-deadlines",
			config.Saga.PaymentDeadline,
			deps.Logger,
		)
		deps.DeadlineScheduler = deps.KafkaScheduler
	default:
		deps.TimerScheduler = deadline.NewTimerScheduler()
		deps.DeadlineScheduler = deps.TimerScheduler
	}

	deps.Orchestrator = saga.NewOrchestrator(
		deps.Bus,
		deps.Bus,
		deps.DeadlineScheduler,
		deps.SagaStore,
		notifier,
		config.Saga.PaymentDeadline,
		tracer,
		deps.Logger,
	)
	registerDeadlineHandlers(deps)
	if err := deps.Orchestrator.Register(ctx, deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to register orchestrator: %w", err)
	}

	// HTTP
	deps.OrderHandlers = handlers.NewOrderHandlers(deps.Bus, deps.Bus, config.Saga.HTTPWaitTimeout)

	return deps, nil
}

// registerDeadlineHandlers binds the payment deadline to the
// orchestrator on whichever scheduler backend was built
func registerDeadlineHandlers(deps *Dependencies) {
	if deps.TimerScheduler != nil {
		deps.TimerScheduler.RegisterHandler(saga.PaymentDeadlineName, deps.Orchestrator.HandleDeadline)
	}
	if deps.KafkaScheduler != nil {
		deps.KafkaScheduler.RegisterHandler(saga.PaymentDeadlineName, deps.Orchestrator.HandleDeadline,
			func(data []byte) (interface{}, error) {
				var reserved contracts.ProductReservedEvent
				if err := json.Unmarshal(data, &reserved); err != nil {
					return nil, err
				}
				return reserved, nil
			})
	}
}

func (d *Dependencies) connectDatabase(config *Config) error {
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	d.DB = db
	return nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	d.Bus.Close()

	if d.SQSSubscriber != nil {
		if err := d.SQSSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close SQS subscriber: %w", err))
		}
	}

	if d.SNSPublisher != nil {
		if err := d.SNSPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close SNS publisher: %w", err))
		}
	}

	if d.KafkaScheduler != nil {
		if err := d.KafkaScheduler.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka scheduler: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
