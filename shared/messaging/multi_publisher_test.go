package messaging

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/shared/models"
)

type fakePublisher struct {
	events []*Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, events ...*Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func TestMultiPublisher_FansOutToAll(t *testing.T) {
	local := &fakePublisher{}
	remote := &fakePublisher{}
	publisher := NewMultiPublisher(local, remote)

	event := NewEvent(models.GenerateUUID(), "order.created", nil)
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, local.events, 1)
	require.Len(t, remote.events, 1)
	assert.Equal(t, event.ID, local.events[0].ID)
	assert.Equal(t, event.ID, remote.events[0].ID)
}

func TestMultiPublisher_StopsAtFirstFailure(t *testing.T) {
	failing := &fakePublisher{err: errors.New("topic unavailable")}
	downstream := &fakePublisher{}
	publisher := NewMultiPublisher(failing, downstream)

	err := publisher.Publish(context.Background(), NewEvent(models.GenerateUUID(), "order.created", nil))
	require.Error(t, err)
	assert.Empty(t, downstream.events, "publishers after the failing one must not receive the event")
}
