package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	byTopic map[string][]kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if w.byTopic == nil {
		w.byTopic = make(map[string][]kafka.Message)
	}
	w.byTopic[topic] = append(w.byTopic[topic], msgs...)
	return nil
}

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	writer := &captureWriter{}
	d := NewDispatcher(nil, writer, time.Second, 100)

	messages := []Message{
		{EventID: 1, AggregateType: "user", AggregateID: "u1", EventType: "user.onboarded",
			Topic: "fitness_user_events", PartitionKey: "u1", Payload: json.RawMessage(`{"user_id":"u1"}`)},
		{EventID: 2, AggregateType: "workout_session", AggregateID: "s1", EventType: "session.processed",
			Topic: "fitness_session_events", PartitionKey: "u1", Payload: json.RawMessage(`{"session_id":"s1"}`)},
		{EventID: 3, AggregateType: "workout_session", AggregateID: "s2", EventType: "session.processed",
			Topic: "fitness_session_events", PartitionKey: "u2", Payload: json.RawMessage(`{"session_id":"s2"}`)},
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	require.Len(t, writer.byTopic, 2)
	assert.Len(t, writer.byTopic["fitness_user_events"], 1)
	require.Len(t, writer.byTopic["fitness_session_events"], 2)

	record := writer.byTopic["fitness_session_events"][0]
	assert.Equal(t, []byte("u1"), record.Key)
	assert.JSONEq(t, `{"session_id":"s1"}`, string(record.Value))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "session.processed", headers["event_type"])
	assert.Equal(t, "workout_session", headers["aggregate_type"])
	assert.Equal(t, "s1", headers["aggregate_id"])
}
