package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

// CreateOrderRequest is the HTTP body for order creation
type CreateOrderRequest struct {
	UserID    models.ID `json:"user_id"`
	ProductID models.ID `json:"product_id"`
	AddressID models.ID `json:"address_id"`
	Quantity  int       `json:"quantity"`
}

// OrderHandlers contains order HTTP handlers. Order creation is
// synchronous from the caller's point of view: the handler subscribes to
// the order's summary before issuing the command, then blocks until the
// workflow pushes a terminal state.
type OrderHandlers struct {
	commands    messaging.CommandBus
	queries     messaging.QueryBus
	waitTimeout time.Duration
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(commands messaging.CommandBus, queries messaging.QueryBus, waitTimeout time.Duration) *OrderHandlers {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &OrderHandlers{
		commands:    commands,
		queries:     queries,
		waitTimeout: waitTimeout,
	}
}

// CreateOrder handles order creation requests
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	orderID := models.GenerateUUID()

	// Subscribe before sending so the terminal update cannot slip past
	// between command dispatch and subscription.
	subscription, err := h.queries.SubscriptionQuery(r.Context(), contracts.FindOrderQuery{OrderID: orderID})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer subscription.Close()

	cmd := contracts.CreateOrderCommand{
		OrderID:   orderID,
		UserID:    req.UserID,
		ProductID: req.ProductID,
		AddressID: req.AddressID,
		Quantity:  req.Quantity,
		Status:    contracts.OrderStatusCreated,
	}
	if _, err := h.commands.SendAndWait(r.Context(), cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeout := time.NewTimer(h.waitTimeout)
	defer timeout.Stop()

	select {
	case update := <-subscription.Updates():
		summary, ok := update.(contracts.OrderSummary)
		if !ok {
			http.Error(w, "unexpected update type", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(summary)
	case <-timeout.C:
		http.Error(w, "timed out waiting for order outcome", http.StatusGatewayTimeout)
	case <-r.Context().Done():
		http.Error(w, "request canceled", http.StatusRequestTimeout)
	}
}

// GetOrder handles order summary retrieval requests
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	answer, err := h.queries.Ask(r.Context(), contracts.FindOrderQuery{OrderID: orderID})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summary, ok := answer.(*contracts.OrderSummary)
	if !ok || summary == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
	})
}
