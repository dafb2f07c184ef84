package saga

import (
	"github.com/rs/zerolog"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// Notifier publishes terminal order summaries to every subscriber waiting
// on a FindOrder subscription query for that order. The orchestrator calls
// it exactly once per saga instance, at the moment a terminal event is
// observed.
type Notifier struct {
	emitter messaging.UpdateEmitter
	logger  zerolog.Logger
}

// NewNotifier creates a new Notifier
func NewNotifier(emitter messaging.UpdateEmitter, logger zerolog.Logger) *Notifier {
	return &Notifier{emitter: emitter, logger: logger}
}

// NotifyTerminal emits the terminal summary to matching subscriptions
func (n *Notifier) NotifyTerminal(summary contracts.OrderSummary) {
	n.logger.Info().
		Str("order_id", summary.OrderID.String()).
		Str("status", string(summary.Status)).
		Str("reason", summary.Reason).
		Msg("order reached terminal state")

	n.emitter.Emit(contracts.FindOrderQueryType, func(query messaging.Query) bool {
		find, ok := query.(contracts.FindOrderQuery)
		return ok && find.OrderID == summary.OrderID
	}, summary)
}
