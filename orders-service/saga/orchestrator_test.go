package saga_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	"github.com/kaif91/order-services/shared/models"
	users "github.com/kaif91/order-services/users-service"
	usershandlers "github.com/kaif91/order-services/users-service/handlers"
)

// countingStock wraps a stock store and counts reservation attempts
type countingStock struct {
	stock.Store

	mu       sync.Mutex
	reserves int
}

func (c *countingStock) Reserve(ctx context.Context, productID models.ID, quantity int) error {
	c.mu.Lock()
	c.reserves++
	c.mu.Unlock()
	return c.Store.Reserve(ctx, productID, quantity)
}

func (c *countingStock) reserveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reserves
}

// harness wires the whole order workflow onto one in-memory bus
type harness struct {
	bus       *messaging.MemoryBus
	stock     *countingStock
	registry  users.Registry
	scheduler *deadline.TimerScheduler
	store     saga.Store
	summaries query.SummaryRepository
}

type harnessOptions struct {
	paymentDeadline time.Duration
	// paymentHandler replaces the real payment handler when set
	paymentHandler messaging.CommandHandler
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	if opts.paymentDeadline == 0 {
		opts.paymentDeadline = 5 * time.Second
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	bus := messaging.NewMemoryBus()
	t.Cleanup(bus.Close)

	ctx := context.Background()

	// Write side.
	eventStore := sharedinfra.NewMemoryEventStore()
	orderRepository := infrastructure.NewEventSourcedOrderRepository(eventStore)
	orderCommands := handlers.NewOrderCommandHandlers(
		application.NewCreateOrder(orderRepository, bus),
		application.NewApproveOrder(orderRepository, bus),
		application.NewRejectOrder(orderRepository, bus),
	)
	require.NoError(t, orderCommands.Register(bus))

	// Read side.
	summaries := query.NewMemorySummaryRepository()
	require.NoError(t, query.NewProjector(summaries, logger).Register(ctx, bus))
	require.NoError(t, bus.RegisterQueryHandler(contracts.FindOrderQueryType, query.NewFindOrderHandler(summaries)))

	// Products service.
	stockStore := &countingStock{Store: stock.NewMemoryStore()}
	productCommands := productshandlers.NewProductCommandHandlers(
		productsapp.NewReserveProduct(stockStore, bus, logger),
		productsapp.NewCancelReservation(stockStore, bus, logger),
	)
	require.NoError(t, productCommands.Register(bus))

	// Payments service.
	if opts.paymentHandler != nil {
		require.NoError(t, bus.RegisterCommandHandler(contracts.ProcessPaymentCommandType, opts.paymentHandler))
	} else {
		paymentCommands := paymentshandlers.NewPaymentCommandHandlers(paymentsapp.NewProcessPayment(bus, logger))
		require.NoError(t, paymentCommands.Register(bus))
	}

	// Users service.
	registry := users.NewMemoryRegistry()
	require.NoError(t, usershandlers.NewUserQueryHandlers(registry, logger).Register(bus))

	// Saga.
	scheduler := deadline.NewTimerScheduler()
	store := saga.NewMemoryStore()
	orchestrator := saga.NewOrchestrator(
		bus, bus, scheduler, store,
		saga.NewNotifier(bus, logger),
		opts.paymentDeadline,
		otel.Tracer("test"),
		logger,
	)
	scheduler.RegisterHandler(saga.PaymentDeadlineName, orchestrator.HandleDeadline)
	require.NoError(t, orchestrator.Register(ctx, bus))

	return &harness{
		bus:       bus,
		stock:     stockStore,
		registry:  registry,
		summaries: summaries,
		scheduler: scheduler,
		store:     store,
	}
}

func (h *harness) seedUser(t *testing.T, userID models.ID) {
	t.Helper()
	require.NoError(t, h.registry.Save(context.Background(), &contracts.User{
		UserID:    userID,
		FirstName: "Test",
		LastName:  "User",
		PaymentDetails: contracts.PaymentDetails{
			CardNumber:      "123Card",
			ValidUntilMonth: 12,
			ValidUntilYear:  2030,
			Name:            "Test User",
		},
	}))
}

// placeOrder subscribes to the order's summary, sends CreateOrder and
// waits for the terminal state, the way the HTTP handler does.
func (h *harness) placeOrder(t *testing.T, userID, productID models.ID, quantity int) contracts.OrderSummary {
	t.Helper()
	ctx := context.Background()
	orderID := models.GenerateUUID()

	sub, err := h.bus.SubscriptionQuery(ctx, contracts.FindOrderQuery{OrderID: orderID})
	require.NoError(t, err)
	defer sub.Close()

	_, err = h.bus.SendAndWait(ctx, contracts.CreateOrderCommand{
		OrderID:   orderID,
		UserID:    userID,
		ProductID: productID,
		AddressID: models.GenerateUUID(),
		Quantity:  quantity,
		Status:    contracts.OrderStatusCreated,
	})
	require.NoError(t, err)

	select {
	case update := <-sub.Updates():
		summary, ok := update.(contracts.OrderSummary)
		require.True(t, ok, "unexpected update type %T", update)
		return summary
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for terminal order state")
		return contracts.OrderSummary{}
	}
}

func (h *harness) assertSagaEnded(t *testing.T, orderID models.ID) {
	t.Helper()
	instance, err := h.store.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Nil(t, instance, "saga instance should be deleted after terminal state")
	assert.Equal(t, 0, h.scheduler.PendingCount(), "no deadline should stay armed")
}

func TestSaga_OrderApproved(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	userID := models.GenerateUUID()
	productID := models.GenerateUUID()
	h.seedUser(t, userID)
	require.NoError(t, h.stock.SetStock(context.Background(), productID, 5))

	summary := h.placeOrder(t, userID, productID, 2)

	assert.Equal(t, contracts.OrderStatusApproved, summary.Status)
	assert.Empty(t, summary.Reason)

	left, err := h.stock.GetStock(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 3, left, "reservation should stick on the approved path")

	h.assertSagaEnded(t, summary.OrderID)

	stored, err := h.summaries.FindByOrderID(context.Background(), summary.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, contracts.OrderStatusApproved, stored.Status)
}

func TestSaga_InsufficientStockRejectsOrder(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	userID := models.GenerateUUID()
	productID := models.GenerateUUID()
	h.seedUser(t, userID)
	// No stock seeded: the reservation fails outright.

	summary := h.placeOrder(t, userID, productID, 1)

	assert.Equal(t, contracts.OrderStatusRejected, summary.Status)
	assert.Equal(t, "insufficient stock", summary.Reason, "handler failure message must reach the summary verbatim")

	h.assertSagaEnded(t, summary.OrderID)
}

func TestSaga_UnknownUserCompensatesReservation(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	productID := models.GenerateUUID()
	require.NoError(t, h.stock.SetStock(context.Background(), productID, 5))

	// The user is never registered, so payment details cannot be fetched.
	summary := h.placeOrder(t, models.GenerateUUID(), productID, 2)

	assert.Equal(t, contracts.OrderStatusRejected, summary.Status)
	assert.Equal(t, "could not fetch user payment details", summary.Reason)

	left, err := h.stock.GetStock(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 5, left, "compensation must return the held stock")

	h.assertSagaEnded(t, summary.OrderID)
}

func TestSaga_UnconfirmedPaymentCompensatesReservation(t *testing.T) {
	// Payment handler acknowledges with an empty value: the charge was
	// not confirmed.
	h := newHarness(t, harnessOptions{
		paymentHandler: messaging.CommandHandlerFunc(func(context.Context, messaging.Command) (string, error) {
			return "", nil
		}),
	})

	userID := models.GenerateUUID()
	productID := models.GenerateUUID()
	h.seedUser(t, userID)
	require.NoError(t, h.stock.SetStock(context.Background(), productID, 5))

	summary := h.placeOrder(t, userID, productID, 1)

	assert.Equal(t, contracts.OrderStatusRejected, summary.Status)
	assert.Equal(t, "could not process payment", summary.Reason)

	left, err := h.stock.GetStock(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 5, left)

	h.assertSagaEnded(t, summary.OrderID)
}

func TestSaga_PaymentDeadlineCompensatesReservation(t *testing.T) {
	// Payment handler acknowledges the charge but the confirmation event
	// never arrives, so the deadline fires.
	h := newHarness(t, harnessOptions{
		paymentDeadline: 100 * time.Millisecond,
		paymentHandler: messaging.CommandHandlerFunc(func(_ context.Context, cmd messaging.Command) (string, error) {
			payment := cmd.(contracts.ProcessPaymentCommand)
			return payment.PaymentID.String(), nil
		}),
	})

	userID := models.GenerateUUID()
	productID := models.GenerateUUID()
	h.seedUser(t, userID)
	require.NoError(t, h.stock.SetStock(context.Background(), productID, 5))

	summary := h.placeOrder(t, userID, productID, 1)

	assert.Equal(t, contracts.OrderStatusRejected, summary.Status)
	assert.Equal(t, "Payment Timeout", summary.Reason)

	left, err := h.stock.GetStock(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 5, left)

	h.assertSagaEnded(t, summary.OrderID)

	// A confirmation that limps in after the rejection changes nothing.
	event := messaging.NewEvent(summary.OrderID, contracts.PaymentProcessedEventType, contracts.PaymentProcessedEvent{
		OrderID:   summary.OrderID,
		PaymentID: models.GenerateUUID(),
	})
	require.NoError(t, h.bus.Publish(context.Background(), event))
	time.Sleep(100 * time.Millisecond)

	stored, err := h.summaries.FindByOrderID(context.Background(), summary.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, contracts.OrderStatusRejected, stored.Status)
}

func TestSaga_DuplicateOrderCreatedIsDropped(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, harnessOptions{
		paymentHandler: messaging.CommandHandlerFunc(func(_ context.Context, cmd messaging.Command) (string, error) {
			<-release
			payment := cmd.(contracts.ProcessPaymentCommand)
			return payment.PaymentID.String(), nil
		}),
	})

	userID := models.GenerateUUID()
	productID := models.GenerateUUID()
	orderID := models.GenerateUUID()
	h.seedUser(t, userID)
	require.NoError(t, h.stock.SetStock(context.Background(), productID, 5))

	created := contracts.OrderCreatedEvent{
		OrderID:   orderID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  1,
		Status:    contracts.OrderStatusCreated,
	}

	// The same start event delivered twice while the saga is live.
	first := messaging.NewEvent(orderID, contracts.OrderCreatedEventType, created).WithCorrelationID(orderID)
	second := messaging.NewEvent(orderID, contracts.OrderCreatedEventType, created).WithCorrelationID(orderID)
	require.NoError(t, h.bus.Publish(context.Background(), first, second))

	assert.Eventually(t, func() bool {
		return h.stock.reserveCount() == 1
	}, time.Second, 10*time.Millisecond)

	// Give the duplicate a chance to misbehave, then let the saga finish.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.stock.reserveCount(), "duplicate start must not reserve twice")
	close(release)
}
