package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/ean_catalog/internal/config"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(nil, "product_events")
	require.Error(t, err)

	_, err = NewProducer([]string{"localhost:9092"}, "")
	require.Error(t, err)

	p, err := NewProducer([]string{"localhost:9092"}, "product_events")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishEvent_Envelope(t *testing.T) {
	fw := &fakeWriter{}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &Producer{w: fw, now: func() time.Time { return at }}

	err := p.PublishEvent(context.Background(), "65041", map[string]any{"type": "product_created", "sku": "65041"})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "65041", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, HeaderEventID, msg.Headers[0].Key)

	var env struct {
		ID         string         `json:"id"`
		OccurredAt time.Time      `json:"occurred_at"`
		Payload    map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, string(msg.Headers[0].Value), env.ID)
	_, err = uuid.Parse(env.ID)
	assert.NoError(t, err)
	assert.True(t, at.Equal(env.OccurredAt))
	assert.Equal(t, "product_created", env.Payload["type"])

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestPublishEvent_Errors(t *testing.T) {
	p := &Producer{w: &fakeWriter{err: errors.New("leader not available")}, now: time.Now}
	err := p.PublishEvent(context.Background(), "k", map[string]any{"type": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")

	p = &Producer{w: &fakeWriter{}, now: time.Now}
	err = p.PublishEvent(context.Background(), "k", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Marshal")
}

func ensureTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	admin, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer admin.Close()

	err = admin.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		require.NoError(t, err)
	}
}

func TestProducer_Kafka(t *testing.T) {
	brokers := config.CSV(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		t.Skip("KAFKA_BROKERS not set")
	}
	topic := "product_events_test"
	ensureTopic(t, brokers[0], topic)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	conn, err := kafka.DialLeader(ctx, "tcp", brokers[0], topic, 0)
	require.NoError(t, err)
	end, err := conn.ReadLastOffset()
	require.NoError(t, err)
	_ = conn.Close()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   time.Second,
	})
	defer r.Close()
	require.NoError(t, r.SetOffset(end))

	p, err := NewProducer(brokers, topic)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.PublishEvent(ctx, "S1", map[string]any{"type": "product_deleted", "sku": "S1"}))

	m, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "S1", string(m.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	assert.Equal(t, "product_deleted", env.Payload.(map[string]any)["type"])
}
