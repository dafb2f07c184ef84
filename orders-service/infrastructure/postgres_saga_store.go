package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/saga"
	"github.com/kaif91/order-services/shared/deadline"
	"github.com/kaif91/order-services/shared/models"
)

// PostgresSagaStore implements saga.Store using PostgreSQL. The product
// id column is indexed so lookups by either correlation key hit an index.
type PostgresSagaStore struct {
	db *sqlx.DB
}

var _ saga.Store = (*PostgresSagaStore)(nil)

// NewPostgresSagaStore creates a new PostgresSagaStore
func NewPostgresSagaStore(db *sqlx.DB) *PostgresSagaStore {
	return &PostgresSagaStore{db: db}
}

// postgresSagaInstance represents a saga instance row in database
type postgresSagaInstance struct {
	OrderID       string    `db:"order_id"`
	ProductID     string    `db:"product_id"`
	Quantity      int       `db:"quantity"`
	UserID        string    `db:"user_id"`
	DeadlineToken string    `db:"deadline_token"`
	State         string    `db:"state"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Save upserts the instance row
func (s *PostgresSagaStore) Save(ctx context.Context, instance *saga.Instance) error {
	query := `
		INSERT INTO saga_instances (
			order_id, product_id, quantity, user_id, deadline_token, state, updated_at
		) VALUES (
			:order_id, :product_id, :quantity, :user_id, :deadline_token, :state, :updated_at
		)
		ON CONFLICT (order_id)
		DO UPDATE SET product_id = :product_id, quantity = :quantity, user_id = :user_id,
			deadline_token = :deadline_token, state = :state, updated_at = :updated_at`

	_, err := s.db.NamedExecContext(ctx, query, s.toPostgres(instance))
	if err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	return nil
}

// GetByOrderID looks up an instance by its primary correlation key
func (s *PostgresSagaStore) GetByOrderID(ctx context.Context, orderID models.ID) (*saga.Instance, error) {
	query := `
		SELECT order_id, product_id, quantity, user_id, deadline_token, state, updated_at
		FROM saga_instances
		WHERE order_id = $1`

	return s.getOne(ctx, query, orderID.String())
}

// GetByProductID looks up an instance by the reservation-leg correlation
// key. product_id is not unique across live sagas; the most recently
// updated instance wins, matching the other backends' pointer semantics.
func (s *PostgresSagaStore) GetByProductID(ctx context.Context, productID models.ID) (*saga.Instance, error) {
	query := `
		SELECT order_id, product_id, quantity, user_id, deadline_token, state, updated_at
		FROM saga_instances
		WHERE product_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	return s.getOne(ctx, query, productID.String())
}

// Delete removes the instance row
func (s *PostgresSagaStore) Delete(ctx context.Context, orderID models.ID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM saga_instances WHERE order_id = $1", orderID.String())
	if err != nil {
		return errors.Wrap(err, "failed to delete saga instance")
	}
	return nil
}

func (s *PostgresSagaStore) getOne(ctx context.Context, query string, arg string) (*saga.Instance, error) {
	var pgInstance postgresSagaInstance
	err := s.db.GetContext(ctx, &pgInstance, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Instance not found
		}
		return nil, errors.Wrap(err, "failed to find saga instance")
	}

	return s.toDomain(&pgInstance)
}

// toPostgres converts saga instance to postgres model
func (s *PostgresSagaStore) toPostgres(instance *saga.Instance) *postgresSagaInstance {
	return &postgresSagaInstance{
		OrderID:       instance.OrderID.String(),
		ProductID:     instance.ProductID.String(),
		Quantity:      instance.Quantity,
		UserID:        instance.UserID.String(),
		DeadlineToken: instance.DeadlineToken.String(),
		State:         string(instance.State),
		UpdatedAt:     time.Now(),
	}
}

// toDomain converts postgres model to saga instance
func (s *PostgresSagaStore) toDomain(pgInstance *postgresSagaInstance) (*saga.Instance, error) {
	orderID, err := models.NewID(pgInstance.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	productID, err := models.NewID(pgInstance.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid product ID")
	}

	userID, err := models.NewID(pgInstance.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user ID")
	}

	return &saga.Instance{
		OrderID:       orderID,
		ProductID:     productID,
		Quantity:      pgInstance.Quantity,
		UserID:        userID,
		DeadlineToken: deadline.Token(pgInstance.DeadlineToken),
		State:         saga.State(pgInstance.State),
	}, nil
}
