package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/orderstatus"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

type mockReservations struct {
	mu         sync.Mutex
	released   []int64
	converted  []int64
	releaseErr error
}

func (m *mockReservations) ReleaseReservations(_ context.Context, orderID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return 0, m.releaseErr
	}
	m.released = append(m.released, orderID)
	return 1, nil
}

func (m *mockReservations) ConvertToDeductions(_ context.Context, orderID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.converted = append(m.converted, orderID)
	return 1, nil
}

func (m *mockReservations) calls() ([]int64, []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.released...), append([]int64(nil), m.converted...)
}

func newTestConsumer(res Reservations, recorder StatusRecorder) *Consumer {
	return &Consumer{reservations: res, recorder: recorder, logger: zap.NewNop()}
}

func event(t *testing.T, orderID int64, status, previous domain.OrderStatus) []byte {
	payload, err := json.Marshal(OrderStatusEvent{OrderID: orderID, Status: status, PreviousStatus: previous})
	require.NoError(t, err)
	return payload
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name          string
		status        domain.OrderStatus
		previous      domain.OrderStatus
		wantAction    string
		wantReleased  []int64
		wantConverted []int64
	}{
		{"cancelled releases", domain.OrderStatusCancelled, domain.OrderStatusPaid, actionRelease, []int64{7}, nil},
		{"cancelled before payment releases", domain.OrderStatusCancelled, domain.OrderStatusNew, actionRelease, []int64{7}, nil},
		{"assembled after accepted converts", domain.OrderStatusAssembled, domain.OrderStatusAccepted, actionConvert, nil, []int64{7}},
		{"assembled from elsewhere is ignored", domain.OrderStatusAssembled, domain.OrderStatusPaid, actionIgnore, nil, nil},
		{"paid is ignored", domain.OrderStatusPaid, domain.OrderStatusNew, actionIgnore, nil, nil},
		{"delivered is ignored", domain.OrderStatusDelivered, domain.OrderStatusInDelivery, actionIgnore, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &mockReservations{}
			c := newTestConsumer(res, nil)

			action, err := c.handle(context.Background(), event(t, 7, tt.status, tt.previous))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, action)

			released, converted := res.calls()
			assert.Equal(t, tt.wantReleased, released)
			assert.Equal(t, tt.wantConverted, converted)
		})
	}
}

func TestHandle_InvalidPayloads(t *testing.T) {
	c := newTestConsumer(&mockReservations{}, nil)
	ctx := context.Background()

	for _, payload := range []string{`{not json`, `{"status":"CANCELLED"}`, `{"order_id":3}`} {
		action, err := c.handle(ctx, []byte(payload))
		assert.Error(t, err, payload)
		assert.Equal(t, actionInvalid, action, payload)
	}
}

func TestHandle_ReleaseFailure(t *testing.T) {
	res := &mockReservations{releaseErr: errors.New("db down")}
	c := newTestConsumer(res, nil)

	action, err := c.handle(context.Background(), event(t, 1, domain.OrderStatusCancelled, domain.OrderStatusNew))
	assert.Equal(t, actionFailed, action)
	assert.ErrorContains(t, err, "release order 1")
}

func TestHandle_RecordsStatus(t *testing.T) {
	statuses := orderstatus.NewMemorySource()
	c := newTestConsumer(&mockReservations{}, statuses)

	_, err := c.handle(context.Background(), event(t, 5, domain.OrderStatusPaid, domain.OrderStatusNew))
	require.NoError(t, err)

	status, err := statuses.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, status)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
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

func TestConsumer_AppliesEventsFromKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerAddr, cleanupKafka := setupKafka(t)
	defer cleanupKafka()

	const topic = "order-status"
	createTopic(t, brokerAddr, topic)

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokerAddr),
		Topic:                  topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()
	require.NoError(t, w.WriteMessages(ctx,
		kafkaGo.Message{Key: []byte("11"), Value: event(t, 11, domain.OrderStatusCancelled, domain.OrderStatusNew)},
		kafkaGo.Message{Key: []byte("12"), Value: []byte("garbage")},
		kafkaGo.Message{Key: []byte("12"), Value: event(t, 12, domain.OrderStatusAssembled, domain.OrderStatusAccepted)},
	))

	res := &mockReservations{}
	c := NewConsumer(Config{Brokers: []string{brokerAddr}, Topic: topic, GroupID: "bouquet-inventory-test"}, res, nil, nil, zap.NewNop())
	defer func() {
		cancel()
		c.Close()
	}()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		released, converted := res.calls()
		return len(released) == 1 && len(converted) == 1
	}, 30*time.Second, 500*time.Millisecond)

	released, converted := res.calls()
	assert.Equal(t, []int64{11}, released)
	assert.Equal(t, []int64{12}, converted)
}
