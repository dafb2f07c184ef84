package contracts

import "github.com/kaif91/order-services/shared/models"

// Query type constants
const (
	FetchUserPaymentDetailsQueryType = "user.payment-details"
	FindOrderQueryType               = "order.find"
)

// FetchUserPaymentDetailsQuery asks the users service for payment details
type FetchUserPaymentDetailsQuery struct {
	UserID models.ID `json:"user_id"`
}

func (FetchUserPaymentDetailsQuery) QueryType() string { return FetchUserPaymentDetailsQueryType }

// FindOrderQuery looks up the order summary projection. Used both as a
// point query and as a subscription query by callers waiting for the
// order to reach a terminal state.
type FindOrderQuery struct {
	OrderID models.ID `json:"order_id"`
}

func (FindOrderQuery) QueryType() string { return FindOrderQueryType }

// PaymentDetails is the charge information held on file for a user
type PaymentDetails struct {
	CardNumber      string `json:"card_number"`
	ValidUntilMonth int    `json:"valid_until_month"`
	ValidUntilYear  int    `json:"valid_until_year"`
	Name            string `json:"name"`
}

// IsZero reports whether no payment details are on file
func (d PaymentDetails) IsZero() bool {
	return d == PaymentDetails{}
}

// User is the users service's view of an account holder
type User struct {
	UserID         models.ID      `json:"user_id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	PaymentDetails PaymentDetails `json:"payment_details"`
}
