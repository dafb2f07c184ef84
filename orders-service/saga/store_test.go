package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/shared/models"
)

func TestMemoryStore_ProductIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	orderID := models.GenerateUUID()
	productID := models.GenerateUUID()

	require.NoError(t, store.Save(ctx, &Instance{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  2,
		State:     StateStarted,
	}))

	byOrder, err := store.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, byOrder)
	assert.Equal(t, productID, byOrder.ProductID)

	byProduct, err := store.GetByProductID(ctx, productID)
	require.NoError(t, err)
	require.NotNil(t, byProduct)
	assert.Equal(t, orderID, byProduct.OrderID)
}

func TestMemoryStore_UnknownKeysReturnNil(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	instance, err := store.GetByOrderID(ctx, models.GenerateUUID())
	require.NoError(t, err)
	assert.Nil(t, instance)

	instance, err = store.GetByProductID(ctx, models.GenerateUUID())
	require.NoError(t, err)
	assert.Nil(t, instance)
}

func TestMemoryStore_DeleteRemovesIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	orderID := models.GenerateUUID()
	productID := models.GenerateUUID()
	require.NoError(t, store.Save(ctx, &Instance{OrderID: orderID, ProductID: productID, State: StateStarted}))

	require.NoError(t, store.Delete(ctx, orderID))

	instance, err := store.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, instance)

	instance, err = store.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Nil(t, instance)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, orderID))
}

func TestMemoryStore_DeleteKeepsRepointedIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	productID := models.GenerateUUID()
	first := models.GenerateUUID()
	second := models.GenerateUUID()

	require.NoError(t, store.Save(ctx, &Instance{OrderID: first, ProductID: productID, State: StateStarted}))
	require.NoError(t, store.Save(ctx, &Instance{OrderID: second, ProductID: productID, State: StateStarted}))

	// The first order ends while the second is still live on the same
	// product. Its delete must not take the second order's index entry
	// with it.
	require.NoError(t, store.Delete(ctx, first))

	instance, err := store.GetByProductID(ctx, productID)
	require.NoError(t, err)
	require.NotNil(t, instance)
	assert.Equal(t, second, instance.OrderID)

	require.NoError(t, store.Delete(ctx, second))
	instance, err = store.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Nil(t, instance)
}

func TestMemoryStore_SaveClonesInstance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	orderID := models.GenerateUUID()
	instance := &Instance{OrderID: orderID, State: StateStarted}
	require.NoError(t, store.Save(ctx, instance))

	// Mutating the caller's copy must not leak into the store.
	instance.State = StateCompensating

	stored, err := store.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, stored.State)
}
