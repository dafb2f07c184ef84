package deadline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/shared/models"
)

func TestTimerScheduler_FiresAfterDuration(t *testing.T) {
	scheduler := NewTimerScheduler()

	fired := make(chan interface{}, 1)
	scheduler.RegisterHandler("test-deadline", func(_ context.Context, payload interface{}) {
		fired <- payload
	})

	_, err := scheduler.Schedule(context.Background(), "test-deadline", 10*time.Millisecond, "payload")
	require.NoError(t, err)

	select {
	case got := <-fired:
		assert.Equal(t, "payload", got)
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
	assert.Equal(t, 0, scheduler.PendingCount())
}

func TestTimerScheduler_CancelBeforeFire(t *testing.T) {
	scheduler := NewTimerScheduler()

	fired := make(chan struct{}, 1)
	scheduler.RegisterHandler("test-deadline", func(context.Context, interface{}) {
		fired <- struct{}{}
	})

	token, err := scheduler.Schedule(context.Background(), "test-deadline", 50*time.Millisecond, nil)
	require.NoError(t, err)
	scheduler.Cancel("test-deadline", token)

	select {
	case <-fired:
		t.Fatal("canceled deadline fired")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, scheduler.PendingCount())
}

func TestTimerScheduler_CancelIsIdempotent(t *testing.T) {
	scheduler := NewTimerScheduler()
	scheduler.RegisterHandler("test-deadline", func(context.Context, interface{}) {})

	// Never-armed token.
	scheduler.Cancel("test-deadline", models.GenerateUUID())

	// Already-fired token.
	fired := make(chan struct{})
	scheduler.RegisterHandler("fires", func(context.Context, interface{}) { close(fired) })
	token, err := scheduler.Schedule(context.Background(), "fires", time.Millisecond, nil)
	require.NoError(t, err)
	<-fired
	scheduler.Cancel("fires", token)

	// Already-canceled token.
	token, err = scheduler.Schedule(context.Background(), "test-deadline", time.Hour, nil)
	require.NoError(t, err)
	scheduler.Cancel("test-deadline", token)
	scheduler.Cancel("test-deadline", token)

	assert.Equal(t, 0, scheduler.PendingCount())
}

func TestTimerScheduler_ScheduleWithoutHandler(t *testing.T) {
	scheduler := NewTimerScheduler()

	_, err := scheduler.Schedule(context.Background(), "unregistered", time.Second, nil)
	assert.Error(t, err)
}
