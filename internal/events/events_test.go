package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewClient_ParsesBrokers(t *testing.T) {
	c := NewClient(" a:9092, ,b:9092 ")
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Brokers)
	assert.True(t, c.Enabled())
	assert.False(t, NewClient("").Enabled())
}

func TestNewPublisher_DisabledIsNop(t *testing.T) {
	p := NewPublisher("", "topic")
	_, ok := p.(NopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), "k", SubmissionEvent{}))
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishJSON(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), "chk-1", SubmissionEvent{CheckoutID: "chk-1", State: "done", Total: 1000, Currency: "NOK"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "chk-1", string(w.msgs[0].Key))

	var got SubmissionEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "done", got.State)
	assert.Equal(t, int64(1000), got.Total)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}
	assert.EqualError(t, p.Publish(context.Background(), "k", SubmissionEvent{}), "broker down")
}
