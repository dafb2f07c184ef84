package handlers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
	users "github.com/kaif91/order-services/users-service"
)

// UserQueryHandlers answers user queries from the account registry
type UserQueryHandlers struct {
	registry users.Registry
	logger   zerolog.Logger
}

// NewUserQueryHandlers creates new user query handlers
func NewUserQueryHandlers(registry users.Registry, logger zerolog.Logger) *UserQueryHandlers {
	return &UserQueryHandlers{registry: registry, logger: logger}
}

// Register binds the handlers to their query types
func (h *UserQueryHandlers) Register(registry messaging.QueryRegistry) error {
	return registry.RegisterQueryHandler(contracts.FetchUserPaymentDetailsQueryType,
		messaging.QueryHandlerFunc(h.HandleFetchUserPaymentDetails))
}

// HandleFetchUserPaymentDetails answers with the user on file, or nil
// when the user is unknown
func (h *UserQueryHandlers) HandleFetchUserPaymentDetails(ctx context.Context, query messaging.Query) (interface{}, error) {
	fetch, ok := query.(contracts.FetchUserPaymentDetailsQuery)
	if !ok {
		return nil, errors.Errorf("unexpected query %T", query)
	}

	user, err := h.registry.FindByID(ctx, fetch.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	if user == nil {
		h.logger.Warn().Str("user_id", fetch.UserID.String()).Msg("payment details requested for unknown user")
		return nil, nil
	}

	return user, nil
}
