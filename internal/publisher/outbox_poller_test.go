package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*repository.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var out []*repository.OutboxEvent
	for _, ev := range m.OutboxEvents {
		if !m.processed(ev.ID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed(id int64) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	Messages []kafkaGo.Message
	// FailFor makes the writer fail for messages with this key.
	FailFor string
	Err     error
	Calls   int
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.Calls++
	for _, m := range msgs {
		if w.Err != nil || string(m.Key) == w.FailFor {
			return errors.Join(w.Err, errors.New("write failed"))
		}
		w.Messages = append(w.Messages, m)
	}
	return nil
}

func (w *MockWriter) Close() error { return nil }

func event(id int64, aggregate, eventType string) *repository.OutboxEvent {
	return &repository.OutboxEvent{
		ID:          id,
		AggregateID: aggregate,
		EventType:   eventType,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%q}`, aggregate)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{
		event(1, "order-a", "OrderCreated"),
		event(2, "order-a", "OrderStatusChanged"),
	}}
	writer := &MockWriter{}
	p := NewOutboxPoller(repo, writer, zap.NewNop())

	p.processUnpublishedEvents(context.Background())

	require.Len(t, writer.Messages, 2)
	assert.Equal(t, "order-a", string(writer.Messages[0].Key))
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, "OrderCreated", string(writer.Messages[0].Headers[0].Value))
	assert.Equal(t, "OrderStatusChanged", string(writer.Messages[1].Headers[0].Value))
	assert.Equal(t, []int64{1, 2}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_StopsBatchOnPublishFailure(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{
		event(1, "order-a", "OrderCreated"),
		event(2, "order-b", "OrderCreated"),
		event(3, "order-c", "OrderCreated"),
	}}
	writer := &MockWriter{FailFor: "order-b"}
	p := NewOutboxPoller(repo, writer, zap.NewNop())

	p.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1}, repo.ProcessedIDs)
	require.Len(t, writer.Messages, 1)

	// next tick retries from the failed event
	writer.FailFor = ""
	p.processUnpublishedEvents(context.Background())
	assert.Equal(t, []int64{1, 2, 3}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{FetchErr: errors.New("database connection error")}
	writer := &MockWriter{}
	p := NewOutboxPoller(repo, writer, zap.NewNop())

	p.processUnpublishedEvents(context.Background())

	assert.Zero(t, writer.Calls)
	assert.Empty(t, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_MarkErrorLeavesEventForRetry(t *testing.T) {
	repo := &MockRepository{
		OutboxEvents: []*repository.OutboxEvent{event(1, "order-a", "OrderCreated")},
		MarkErr:      errors.New("deadlock"),
	}
	writer := &MockWriter{}
	p := NewOutboxPoller(repo, writer, zap.NewNop())

	p.processUnpublishedEvents(context.Background())
	assert.Len(t, writer.Messages, 1)
	assert.Empty(t, repo.ProcessedIDs)

	repo.MarkErr = nil
	p.processUnpublishedEvents(context.Background())
	assert.Len(t, writer.Messages, 2, "redelivered: at least once")
	assert.Equal(t, []int64{1}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_BreakerSkipsBrokerWhenOpen(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{event(1, "order-a", "OrderCreated")}}
	writer := &MockWriter{Err: errors.New("broker down")}
	p := NewOutboxPoller(repo, writer, zap.NewNop())

	for i := 0; i < 5; i++ {
		p.processUnpublishedEvents(context.Background())
	}
	assert.Equal(t, 5, writer.Calls)

	p.processUnpublishedEvents(context.Background())
	assert.Equal(t, 5, writer.Calls, "open breaker must not reach the broker")
	assert.Empty(t, repo.ProcessedIDs)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &MockRepository{}
	p := NewOutboxPoller(repo, &MockWriter{}, zap.NewNop())
	p.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func setupKafka(t *testing.T) string {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	brokerAddr := setupKafka(t)
	createTopic(t, brokerAddr, DefaultTopic)

	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{
		event(1, "order-123", "OrderCreated"),
	}}

	writer := NewKafkaWriter(DefaultTopic, brokerAddr)
	defer writer.Close()

	p := NewOutboxPoller(repo, writer, zap.NewNop())
	p.timeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go p.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    DefaultTopic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-123", string(msg.Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "order-123", payload["order_id"])

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.processed(1)
	}, 10*time.Second, 100*time.Millisecond)
}
