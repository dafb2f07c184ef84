package infrastructure

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/shared/deadline"
)

// fakeDeadlineReader hands out each message exactly once, the way a
// group reader's in-session offset does, regardless of commits.
type fakeDeadlineReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	next      int
	committed []kafka.Message
}

func (r *fakeDeadlineReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.messages) {
		return kafka.Message{}, errors.New("no messages")
	}
	msg := r.messages[r.next]
	r.next++
	return msg, nil
}

func (r *fakeDeadlineReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeDeadlineReader) Close() error { return nil }

type firedDeadline struct {
	payload interface{}
}

func newTestScheduler(t *testing.T, delay time.Duration, reader *fakeDeadlineReader) (*KafkaScheduler, *[]firedDeadline) {
	t.Helper()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	s := NewKafkaScheduler([]string{"localhost:9092"}, "delay_topic_test", "test-group", delay, logger)
	s.reader = reader

	var fired []firedDeadline
	s.RegisterHandler("test-deadline",
		func(_ context.Context, payload interface{}) {
			fired = append(fired, firedDeadline{payload: payload})
		},
		func(data []byte) (interface{}, error) {
			var decoded map[string]string
			if err := json.Unmarshal(data, &decoded); err != nil {
				return nil, err
			}
			return decoded, nil
		})
	return s, &fired
}

func deadlineMessage(t *testing.T, token string, produced time.Time) kafka.Message {
	t.Helper()
	data, err := json.Marshal(map[string]string{"order_id": "o-1"})
	require.NoError(t, err)
	return kafka.Message{
		Key:   []byte("test-deadline"),
		Value: data,
		Time:  produced,
		Headers: []kafka.Header{
			{Key: deadlineNameHeader, Value: []byte("test-deadline")},
			{Key: deadlineTokenHeader, Value: []byte(token)},
		},
	}
}

func TestKafkaScheduler_NotDueHeadFiresOnLaterTick(t *testing.T) {
	ctx := context.Background()
	delay := 100 * time.Millisecond
	reader := &fakeDeadlineReader{}
	s, fired := newTestScheduler(t, delay, reader)

	// The head is fetched before it is due; the reader will not hand it
	// out a second time, so the scheduler must hold on to it.
	reader.messages = []kafka.Message{deadlineMessage(t, "tok-1", time.Now())}

	s.checkDue(ctx)
	assert.Empty(t, *fired, "message must not fire before its delay has passed")
	assert.Empty(t, reader.committed)

	time.Sleep(delay + 50*time.Millisecond)

	s.checkDue(ctx)
	require.Len(t, *fired, 1, "held head message must fire once due")
	assert.Equal(t, map[string]string{"order_id": "o-1"}, (*fired)[0].payload)
	assert.Len(t, reader.committed, 1)
}

func TestKafkaScheduler_CanceledTokenIsDropped(t *testing.T) {
	ctx := context.Background()
	delay := 50 * time.Millisecond
	reader := &fakeDeadlineReader{
		messages: []kafka.Message{deadlineMessage(t, "tok-canceled", time.Now().Add(-delay))},
	}
	s, fired := newTestScheduler(t, delay, reader)

	s.Cancel("test-deadline", deadline.Token("tok-canceled"))

	s.checkDue(ctx)
	assert.Empty(t, *fired, "canceled deadline must not fire")
	assert.Len(t, reader.committed, 1, "canceled message is still consumed")
}

func TestKafkaScheduler_DrainsAllDueMessages(t *testing.T) {
	ctx := context.Background()
	delay := 50 * time.Millisecond
	produced := time.Now().Add(-delay)
	reader := &fakeDeadlineReader{
		messages: []kafka.Message{
			deadlineMessage(t, "tok-a", produced),
			deadlineMessage(t, "tok-b", produced),
		},
	}
	s, fired := newTestScheduler(t, delay, reader)

	s.checkDue(ctx)
	assert.Len(t, *fired, 2, "every due message fires in one pass")
	assert.Len(t, reader.committed, 2)
}
