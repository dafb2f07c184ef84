package saga

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/deadline"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
	"github.com/kaif91/order-services/shared/telemetry"
)

// PaymentDeadlineName is the deadline armed while awaiting payment
const PaymentDeadlineName = "payment-process-deadline"

// DefaultPaymentDeadline bounds how long the saga waits for a payment
// confirmation before compensating.
const DefaultPaymentDeadline = 10 * time.Second

// Orchestrator drives one state machine per order: it reacts to events,
// issues commands to the products, payments and orders services, arms a
// payment deadline while awaiting confirmation, and converts every
// failure into a compensating path. All recoverable failures stay inside
// the orchestrator as commands; nothing is re-thrown to a caller.
type Orchestrator struct {
	commands        messaging.CommandBus
	queries         messaging.QueryBus
	deadlines       deadline.Scheduler
	store           Store
	notifier        *Notifier
	paymentDeadline time.Duration
	tracer          trace.Tracer
	logger          zerolog.Logger

	dispatch map[string]func(ctx context.Context, event *messaging.Event) error
	locks    sync.Map
}

// NewOrchestrator creates the saga orchestrator. paymentDeadline <= 0
// falls back to DefaultPaymentDeadline.
func NewOrchestrator(
	commands messaging.CommandBus,
	queries messaging.QueryBus,
	deadlines deadline.Scheduler,
	store Store,
	notifier *Notifier,
	paymentDeadline time.Duration,
	tracer trace.Tracer,
	logger zerolog.Logger,
) *Orchestrator {
	if paymentDeadline <= 0 {
		paymentDeadline = DefaultPaymentDeadline
	}

	o := &Orchestrator{
		commands:        commands,
		queries:         queries,
		deadlines:       deadlines,
		store:           store,
		notifier:        notifier,
		paymentDeadline: paymentDeadline,
		tracer:          tracer,
		logger:          logger,
	}

	// Explicit dispatch table: event topic to handler.
	o.dispatch = map[string]func(ctx context.Context, event *messaging.Event) error{
		contracts.OrderCreatedEventType:               o.onOrderCreated,
		contracts.ProductReservedEventType:            o.onProductReserved,
		contracts.ProductReservationCanceledEventType: o.onReservationCanceled,
		contracts.PaymentProcessedEventType:           o.onPaymentProcessed,
		contracts.OrderApprovedEventType:              o.onOrderApproved,
		contracts.OrderRejectedEventType:              o.onOrderRejected,
	}

	return o
}

// Topics lists the event topics the orchestrator reacts to
func (o *Orchestrator) Topics() []string {
	topics := make([]string, 0, len(o.dispatch))
	for topic := range o.dispatch {
		topics = append(topics, topic)
	}
	return topics
}

// Register subscribes the orchestrator to its topics
func (o *Orchestrator) Register(ctx context.Context, subscriber messaging.Subscriber) error {
	for _, topic := range o.Topics() {
		if err := subscriber.Subscribe(ctx, topic, o); err != nil {
			return errors.Wrapf(err, "failed to subscribe to %s", topic)
		}
	}
	return nil
}

// Handle implements the messaging.EventHandler interface. It is the
// orchestrator's single entry point: events are routed through the
// dispatch table, unknown topics are ignored.
func (o *Orchestrator) Handle(ctx context.Context, event *messaging.Event) error {
	handler, ok := o.dispatch[event.EventType]
	if !ok {
		return nil
	}
	return handler(ctx, event)
}

// HandleDeadline is invoked by the deadline scheduler when the payment
// deadline fires. A deadline superseded by a state change is a no-op.
func (o *Orchestrator) HandleDeadline(ctx context.Context, payload interface{}) {
	reserved, ok := payload.(contracts.ProductReservedEvent)
	if !ok {
		o.logger.Error().Msgf("unexpected deadline payload %T", payload)
		return
	}

	lock := o.lockFor(reserved.OrderID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := o.store.GetByOrderID(ctx, reserved.OrderID)
	if err != nil {
		o.logger.Error().Err(err).Str("order_id", reserved.OrderID.String()).Msg("deadline: store lookup failed")
		return
	}
	if instance == nil || instance.State != StateAwaitingPayment {
		// Payment already confirmed or compensation already running.
		return
	}

	o.logger.Warn().Str("order_id", instance.OrderID.String()).Msg("payment deadline fired")
	if err := o.compensate(ctx, instance, "Payment Timeout"); err != nil {
		o.logger.Error().Err(err).Str("order_id", instance.OrderID.String()).Msg("deadline compensation failed")
	}
}

func (o *Orchestrator) onOrderCreated(ctx context.Context, event *messaging.Event) error {
	ctx, span := o.tracer.Start(ctx, "saga.OrderCreated")
	defer span.End()

	var created contracts.OrderCreatedEvent
	if err := event.UnmarshalPayload(&created); err != nil {
		return errors.Wrap(err, "failed to parse order created event")
	}

	lock := o.lockFor(created.OrderID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := o.store.GetByOrderID(ctx, created.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to look up saga instance")
	}
	if existing != nil {
		// One live instance per order id; duplicate starts are dropped.
		o.logger.Warn().Str("order_id", created.OrderID.String()).Msg("duplicate order created event ignored")
		return nil
	}

	instance := &Instance{
		OrderID:   created.OrderID,
		ProductID: created.ProductID,
		Quantity:  created.Quantity,
		UserID:    created.UserID,
		State:     StateStarted,
	}
	if err := o.store.Save(ctx, instance); err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	o.logger.Info().
		Str("order_id", instance.OrderID.String()).
		Str("product_id", instance.ProductID.String()).
		Msg("saga started, reserving product")

	reserve := contracts.ReserveProductCommand{
		OrderID:   created.OrderID,
		ProductID: created.ProductID,
		Quantity:  created.Quantity,
		UserID:    created.UserID,
	}

	results := o.commands.Send(ctx, reserve)
	go func() {
		result := <-results
		if result.Err == nil {
			return
		}
		// The reservation never existed, so there is nothing to roll
		// back; reject the order directly with the handler's message.
		o.logger.Warn().
			Err(result.Err).
			Str("order_id", created.OrderID.String()).
			Msg("product reservation failed, rejecting order")
		o.sendLogged(ctx, contracts.RejectOrderCommand{
			OrderID: created.OrderID,
			Reason:  result.Err.Error(),
		})
	}()

	return nil
}

func (o *Orchestrator) onProductReserved(ctx context.Context, event *messaging.Event) error {
	ctx, span := o.tracer.Start(ctx, "saga.ProductReserved")
	defer span.End()

	var reserved contracts.ProductReservedEvent
	if err := event.UnmarshalPayload(&reserved); err != nil {
		return errors.Wrap(err, "failed to parse product reserved event")
	}

	lock := o.lockFor(reserved.OrderID)
	lock.Lock()
	defer lock.Unlock()

	// The reservation leg is correlated through the product index.
	instance, err := o.store.GetByProductID(ctx, reserved.ProductID)
	if err != nil {
		return errors.Wrap(err, "failed to look up saga instance")
	}
	if instance == nil {
		o.logger.Error().
			Str("product_id", reserved.ProductID.String()).
			Msg("product reserved event for unknown saga instance")
		return nil
	}
	if instance.State != StateStarted {
		o.logger.Warn().
			Str("order_id", instance.OrderID.String()).
			Str("state", string(instance.State)).
			Msg("duplicate product reserved event ignored")
		return nil
	}

	answer, err := o.queries.Ask(ctx, contracts.FetchUserPaymentDetailsQuery{UserID: instance.UserID})
	if err != nil {
		span.SetStatus(codes.Error, "payment details fetch failed")
		return o.compensate(ctx, instance, err.Error())
	}
	user, ok := answer.(*contracts.User)
	if !ok || user == nil || user.PaymentDetails.IsZero() {
		span.SetStatus(codes.Error, "no payment details on file")
		return o.compensate(ctx, instance, "could not fetch user payment details")
	}

	token, err := o.deadlines.Schedule(ctx, PaymentDeadlineName, o.paymentDeadline, reserved)
	if err != nil {
		return errors.Wrap(err, "failed to arm payment deadline")
	}
	instance.DeadlineToken = token
	instance.State = StateAwaitingPayment
	if err := o.store.Save(ctx, instance); err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	payment := contracts.ProcessPaymentCommand{
		OrderID:        instance.OrderID,
		PaymentID:      models.GenerateUUID(),
		PaymentDetails: user.PaymentDetails,
	}

	ack, err := o.commands.SendAndWait(ctx, payment)
	if err != nil {
		span.SetStatus(codes.Error, "payment failed")
		return o.compensate(ctx, instance, err.Error())
	}
	if ack == "" {
		span.SetStatus(codes.Error, "payment not confirmed")
		return o.compensate(ctx, instance, "could not process payment")
	}

	return nil
}

func (o *Orchestrator) onPaymentProcessed(ctx context.Context, event *messaging.Event) error {
	ctx, span := o.tracer.Start(ctx, "saga.PaymentProcessed")
	defer span.End()

	var processed contracts.PaymentProcessedEvent
	if err := event.UnmarshalPayload(&processed); err != nil {
		return errors.Wrap(err, "failed to parse payment processed event")
	}

	lock := o.lockFor(processed.OrderID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := o.store.GetByOrderID(ctx, processed.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to look up saga instance")
	}
	if instance == nil {
		o.logger.Error().
			Str("order_id", processed.OrderID.String()).
			Msg("payment processed event for unknown saga instance")
		return nil
	}
	if instance.State != StateAwaitingPayment {
		// The deadline already won; the compensation path is in flight.
		o.logger.Warn().
			Str("order_id", instance.OrderID.String()).
			Str("state", string(instance.State)).
			Msg("late payment confirmation ignored")
		return nil
	}

	o.cancelDeadline(instance)
	instance.State = StateAwaitingApproval
	if err := o.store.Save(ctx, instance); err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	o.sendLogged(ctx, contracts.ApproveOrderCommand{OrderID: instance.OrderID})
	return nil
}

func (o *Orchestrator) onReservationCanceled(ctx context.Context, event *messaging.Event) error {
	ctx, span := o.tracer.Start(ctx, "saga.ProductReservationCanceled")
	defer span.End()

	var canceled contracts.ProductReservationCanceledEvent
	if err := event.UnmarshalPayload(&canceled); err != nil {
		return errors.Wrap(err, "failed to parse reservation canceled event")
	}

	lock := o.lockFor(canceled.OrderID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := o.store.GetByOrderID(ctx, canceled.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to look up saga instance")
	}
	if instance == nil {
		// No instance means nothing to compensate; fatal for this event only.
		o.logger.Error().
			Str("order_id", canceled.OrderID.String()).
			Msg("reservation canceled event for unknown saga instance")
		return nil
	}

	// The single place the compensating path issues RejectOrder, so
	// racing failure sources cannot produce duplicate rejects.
	o.sendLogged(ctx, contracts.RejectOrderCommand{
		OrderID: canceled.OrderID,
		Reason:  canceled.Reason,
	})
	return nil
}

func (o *Orchestrator) onOrderApproved(ctx context.Context, event *messaging.Event) error {
	ctx, span := o.tracer.Start(ctx, "saga.OrderApproved")
	defer span.End()

	var approved contracts.OrderApprovedEvent
	if err := event.UnmarshalPayload(&approved); err != nil {
		return errors.Wrap(err, "failed to parse order approved event")
	}

	lock := o.lockFor(approved.OrderID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := o.store.GetByOrderID(ctx, approved.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to look up saga instance")
	}
	if instance == nil {
		o.logger.Warn().
			Str("order_id", approved.OrderID.String()).
			Msg("order approved event for unknown saga instance")
		return nil
	}

	o.cancelDeadline(instance)
	telemetry.RecordCounter(ctx, "saga_completed_total", "sagas that reached a terminal state", 1,
		attribute.String("outcome", "approved"))
	o.notifier.NotifyTerminal(contracts.OrderSummary{
		OrderID: approved.OrderID,
		Status:  contracts.OrderStatusApproved,
	})
	return o.end(ctx, instance)
}

func (o *Orchestrator) onOrderRejected(ctx context.Context, event *messaging.Event) error {
	ctx, span := o.tracer.Start(ctx, "saga.OrderRejected")
	defer span.End()

	var rejected contracts.OrderRejectedEvent
	if err := event.UnmarshalPayload(&rejected); err != nil {
		return errors.Wrap(err, "failed to parse order rejected event")
	}

	lock := o.lockFor(rejected.OrderID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := o.store.GetByOrderID(ctx, rejected.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to look up saga instance")
	}
	if instance == nil {
		o.logger.Warn().
			Str("order_id", rejected.OrderID.String()).
			Msg("order rejected event for unknown saga instance")
		return nil
	}

	o.cancelDeadline(instance)
	telemetry.RecordCounter(ctx, "saga_completed_total", "sagas that reached a terminal state", 1,
		attribute.String("outcome", "rejected"))
	o.notifier.NotifyTerminal(contracts.OrderSummary{
		OrderID: rejected.OrderID,
		Status:  contracts.OrderStatusRejected,
		Reason:  rejected.Reason,
	})
	return o.end(ctx, instance)
}

// compensate cancels the deadline and issues the uniform compensating
// command. The deadline is canceled before the command leaves so a stale
// timeout can never race a compensation already in flight.
func (o *Orchestrator) compensate(ctx context.Context, instance *Instance, reason string) error {
	o.cancelDeadline(instance)
	instance.State = StateCompensating
	if err := o.store.Save(ctx, instance); err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	o.logger.Warn().
		Str("order_id", instance.OrderID.String()).
		Str("reason", reason).
		Msg("compensating: canceling product reservation")

	o.sendLogged(ctx, NewCancelReservation(instance, reason))
	return nil
}

// cancelDeadline disarms the payment deadline if one is armed. Canceling
// an already-fired or never-armed deadline is a no-op.
func (o *Orchestrator) cancelDeadline(instance *Instance) {
	if instance.DeadlineToken == "" {
		return
	}
	o.deadlines.Cancel(PaymentDeadlineName, instance.DeadlineToken)
	instance.DeadlineToken = ""
}

// end removes the terminal instance and its lock entry
func (o *Orchestrator) end(ctx context.Context, instance *Instance) error {
	if err := o.store.Delete(ctx, instance.OrderID); err != nil {
		return errors.Wrap(err, "failed to delete saga instance")
	}
	o.locks.Delete(instance.OrderID)
	return nil
}

// sendLogged fires a command without waiting; the only handling a
// failure gets is a log line. Used for commands whose outcome comes back
// to the saga as an event. The caller's ctx rides along so the handler's
// span stays the parent of the dispatch.
func (o *Orchestrator) sendLogged(ctx context.Context, cmd messaging.Command) {
	results := o.commands.Send(ctx, cmd)
	go func() {
		if result := <-results; result.Err != nil {
			o.logger.Error().
				Err(result.Err).
				Str("command", cmd.CommandType()).
				Msg("command dispatch failed")
		}
	}()
}

func (o *Orchestrator) lockFor(orderID models.ID) *sync.Mutex {
	lock, _ := o.locks.LoadOrStore(orderID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
