package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/query"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/models"
)

// PostgresSummaryRepository implements query.SummaryRepository using PostgreSQL
type PostgresSummaryRepository struct {
	db *sqlx.DB
}

var _ query.SummaryRepository = (*PostgresSummaryRepository)(nil)

// NewPostgresSummaryRepository creates a new PostgresSummaryRepository
func NewPostgresSummaryRepository(db *sqlx.DB) *PostgresSummaryRepository {
	return &PostgresSummaryRepository{db: db}
}

// postgresSummary represents an order summary row in database
type postgresSummary struct {
	OrderID   string    `db:"order_id"`
	Status    string    `db:"status"`
	Reason    string    `db:"reason"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Save upserts a summary row
func (r *PostgresSummaryRepository) Save(ctx context.Context, summary *contracts.OrderSummary) error {
	query := `
		INSERT INTO order_summaries (order_id, status, reason, updated_at)
		VALUES (:order_id, :status, :reason, :updated_at)
		ON CONFLICT (order_id)
		DO UPDATE SET status = :status, reason = :reason, updated_at = :updated_at`

	_, err := r.db.NamedExecContext(ctx, query, &postgresSummary{
		OrderID:   summary.OrderID.String(),
		Status:    string(summary.Status),
		Reason:    summary.Reason,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to save order summary")
	}

	return nil
}

// FindByOrderID looks up a summary row
func (r *PostgresSummaryRepository) FindByOrderID(ctx context.Context, orderID models.ID) (*contracts.OrderSummary, error) {
	query := `
		SELECT order_id, status, reason, updated_at
		FROM order_summaries
		WHERE order_id = $1`

	var pgSummary postgresSummary
	err := r.db.GetContext(ctx, &pgSummary, query, orderID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Summary not found
		}
		return nil, errors.Wrap(err, "failed to find order summary")
	}

	id, err := models.NewID(pgSummary.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	return &contracts.OrderSummary{
		OrderID: id,
		Status:  contracts.OrderStatus(pgSummary.Status),
		Reason:  pgSummary.Reason,
	}, nil
}
