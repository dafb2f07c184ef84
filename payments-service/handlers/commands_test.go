package handlers

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/payments-service/application"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

type recordingPublisher struct {
	events []*messaging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...*messaging.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func TestHandleProcessPayment(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	tests := []struct {
		name       string
		details    contracts.PaymentDetails
		wantAck    bool
		wantEvents int
	}{
		{
			name: "valid details ack with payment id",
			details: contracts.PaymentDetails{
				CardNumber:      "123Card",
				ValidUntilMonth: 12,
				ValidUntilYear:  2030,
				Name:            "SERGEY KARGOPOLOV",
			},
			wantAck:    true,
			wantEvents: 1,
		},
		{
			name:       "missing details ack empty without error",
			details:    contracts.PaymentDetails{},
			wantAck:    false,
			wantEvents: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &recordingPublisher{}
			h := NewPaymentCommandHandlers(application.NewProcessPayment(publisher, logger))

			cmd := contracts.ProcessPaymentCommand{
				OrderID:        models.GenerateUUID(),
				PaymentID:      models.GenerateUUID(),
				PaymentDetails: tt.details,
			}

			ack, err := h.HandleProcessPayment(context.Background(), cmd)
			require.NoError(t, err)

			if tt.wantAck {
				assert.Equal(t, cmd.PaymentID.String(), ack)
			} else {
				assert.Empty(t, ack)
			}
			assert.Len(t, publisher.events, tt.wantEvents)

			if tt.wantEvents > 0 {
				assert.Equal(t, contracts.PaymentProcessedEventType, publisher.events[0].EventType)
				assert.Equal(t, cmd.OrderID, publisher.events[0].AggregateID)
			}
		})
	}
}

func TestHandleProcessPayment_UnexpectedCommand(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	h := NewPaymentCommandHandlers(application.NewProcessPayment(&recordingPublisher{}, logger))

	_, err := h.HandleProcessPayment(context.Background(), contracts.ApproveOrderCommand{})
	assert.Error(t, err)
}
