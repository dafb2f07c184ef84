package query

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// FindOrderHandler answers FindOrder queries from the summary read model.
// It also serves the initial result of subscription queries; a missing
// order answers nil so subscribers opened before creation simply wait
// for updates.
type FindOrderHandler struct {
	repository SummaryRepository
}

var _ messaging.QueryHandler = (*FindOrderHandler)(nil)

// NewFindOrderHandler creates a new FindOrderHandler
func NewFindOrderHandler(repository SummaryRepository) *FindOrderHandler {
	return &FindOrderHandler{repository: repository}
}

// Handle implements the messaging.QueryHandler interface
func (h *FindOrderHandler) Handle(ctx context.Context, query messaging.Query) (interface{}, error) {
	find, ok := query.(contracts.FindOrderQuery)
	if !ok {
		return nil, errors.Errorf("unexpected query type %T", query)
	}

	summary, err := h.repository.FindByOrderID(ctx, find.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order")
	}
	if summary == nil {
		return nil, nil
	}
	return summary, nil
}
