package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducer_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewProducer(Config{Topic: "issues"})
	assert.Error(t, err)

	_, err = NewProducer(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}, Topic: "issues"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestProducer_Send(t *testing.T) {
	writer := &recordingWriter{}
	p := &Producer{writer: writer, topic: "issue-events"}

	require.NoError(t, p.Send(context.Background(), "issue-1", map[string]string{"type": "issue_created"}))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "issue-events", msg.Topic)
	assert.Equal(t, []byte("issue-1"), msg.Key)
	assert.JSONEq(t, `{"type":"issue_created"}`, string(msg.Value))
}

func TestProducer_SendErrors(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("broker down")}, topic: "t"}
	assert.ErrorContains(t, p.Send(context.Background(), "k", "v"), "failed to write message")

	assert.ErrorContains(t, p.Send(context.Background(), "k", make(chan int)), "failed to marshal message")
}
