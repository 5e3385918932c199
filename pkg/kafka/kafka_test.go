package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
	calls   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

type fakeDLQ struct {
	msgs   []kafka.Message
	causes []error
}

func (d *fakeDLQ) Publish(_ context.Context, msg kafka.Message, cause error, _ string) error {
	d.msgs = append(d.msgs, msg)
	d.causes = append(d.causes, cause)
	return nil
}

func stockEvent(t *testing.T) *Event {
	t.Helper()
	e, err := NewEvent("warehouse.stock_received", "p-1", "product", "supplier", map[string]any{
		"product_id": "p-1", "warehouse_id": 2, "quantity": 5,
	})
	require.NoError(t, err)
	return e
}

func messageFor(t *testing.T, e *Event) kafka.Message {
	t.Helper()
	raw, err := e.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: Topic("warehouse", "stock_received"), Value: raw, Offset: 7}
}

// ---------------------------------------------------------------------------
// Event
// ---------------------------------------------------------------------------

func TestEvent_RoundTrip(t *testing.T) {
	e := stockEvent(t).WithCorrelationID("corr-1")

	raw, err := e.Marshal()
	require.NoError(t, err)
	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, e.EventID, decoded.EventID)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.Equal(t, 1, decoded.Version)

	var payload struct {
		WarehouseID int `json:"warehouse_id"`
		Quantity    int `json:"quantity"`
	}
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, 2, payload.WarehouseID)
	assert.Equal(t, 5, payload.Quantity)
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "ecommerce.order.closed", Topic("order", "closed"))
	assert.Equal(t, "ecommerce.dlq.ecommerce.order.closed", DLQTopic("ecommerce.order.closed"))
}

// ---------------------------------------------------------------------------
// Producer
// ---------------------------------------------------------------------------

func TestProducer_PublishSetsKeyAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, DefaultProducerConfig([]string{"b:9092"}), quietLogger())

	e := stockEvent(t).WithCorrelationID("corr-2")
	require.NoError(t, p.Publish(context.Background(), "ecommerce.test.topic", e))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, "ecommerce.test.topic", msg.Topic)
	assert.Equal(t, []byte("p-1"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "warehouse.stock_received", headers["event_type"])
	assert.Equal(t, "corr-2", headers["correlation_id"])
}

func TestProducer_BreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unreachable")}
	cfg := DefaultProducerConfig(nil)
	cfg.Breaker = BreakerConfig{Name: "breaker-test", MaxRequests: 1, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2}
	p := newProducer(w, cfg, quietLogger())

	for i := 0; i < 2; i++ {
		err := p.Publish(context.Background(), "t", stockEvent(t))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.Publish(context.Background(), "t", stockEvent(t))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, w.calls, "open breaker must not reach the writer")
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

// ---------------------------------------------------------------------------
// Consumer
// ---------------------------------------------------------------------------

func TestConsumer_ProcessSuccessCommits(t *testing.T) {
	r := &fakeReader{}
	dlq := &fakeDLQ{}
	calls := 0
	c := newConsumer(r, ConsumerConfig{Topic: "t", GroupID: "g", DLQ: dlq}, func(context.Context, *Event) error {
		calls++
		return nil
	}, quietLogger())

	assert.True(t, c.process(context.Background(), messageFor(t, stockEvent(t))))
	assert.Equal(t, 1, calls)
	assert.Len(t, r.committed, 1)
	assert.Empty(t, dlq.msgs)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	r := &fakeReader{}
	dlq := &fakeDLQ{}
	calls := 0
	handlerErr := errors.New("warehouse not found")
	c := newConsumer(r, ConsumerConfig{Topic: "t", GroupID: "g", MaxAttempts: 3, RetryDelay: time.Millisecond, DLQ: dlq},
		func(context.Context, *Event) error {
			calls++
			return handlerErr
		}, quietLogger())

	assert.True(t, c.process(context.Background(), messageFor(t, stockEvent(t))))
	assert.Equal(t, 3, calls)
	require.Len(t, dlq.msgs, 1)
	assert.ErrorIs(t, dlq.causes[0], handlerErr)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_PermanentErrorSkipsRetries(t *testing.T) {
	r := &fakeReader{}
	dlq := &fakeDLQ{}
	calls := 0
	handlerErr := errors.New("unknown warehouse")
	c := newConsumer(r, ConsumerConfig{Topic: "t", GroupID: "g", MaxAttempts: 3, RetryDelay: time.Hour, DLQ: dlq},
		func(context.Context, *Event) error {
			calls++
			return Permanent(handlerErr)
		}, quietLogger())

	assert.True(t, c.process(context.Background(), messageFor(t, stockEvent(t))))
	assert.Equal(t, 1, calls)
	require.Len(t, dlq.msgs, 1)
	assert.ErrorIs(t, dlq.causes[0], handlerErr)
	assert.True(t, IsPermanent(dlq.causes[0]))
	assert.Len(t, r.committed, 1)
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))

	base := errors.New("bad payload")
	err := fmt.Errorf("handle: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.EqualError(t, Permanent(base), "bad payload")
	assert.False(t, IsPermanent(base))
}

func TestConsumer_UndecodableGoesToDLQ(t *testing.T) {
	r := &fakeReader{}
	dlq := &fakeDLQ{}
	c := newConsumer(r, ConsumerConfig{Topic: "t", GroupID: "g", DLQ: dlq}, func(context.Context, *Event) error {
		t.Fatal("handler must not run")
		return nil
	}, quietLogger())

	assert.True(t, c.process(context.Background(), kafka.Message{Topic: "t", Value: []byte("{not json")}))
	assert.Len(t, dlq.msgs, 1)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_CancelDuringRetryLeavesUncommitted(t *testing.T) {
	r := &fakeReader{}
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(r, ConsumerConfig{Topic: "t", RetryDelay: time.Hour}, func(context.Context, *Event) error {
		cancel()
		return errors.New("db down")
	}, quietLogger())

	assert.False(t, c.process(ctx, messageFor(t, stockEvent(t))))
	assert.Empty(t, r.committed)
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	r := &fakeReader{}
	r.queue = []kafka.Message{messageFor(t, stockEvent(t))}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c := newConsumer(r, ConsumerConfig{Topic: "t"}, func(context.Context, *Event) error {
		close(done)
		return nil
	}, quietLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	<-done
	cancel()
	require.NoError(t, <-errCh)
	assert.NoError(t, c.Close())

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, 1, r.closed)
	assert.Len(t, r.committed, 1)
}

func TestDLQProducer_AddsOriginHeaders(t *testing.T) {
	w := &fakeWriter{}
	d := &DLQProducer{writer: w, logger: quietLogger()}

	msg := kafka.Message{Topic: "ecommerce.warehouse.stock_received", Partition: 3, Offset: 42, Value: []byte("x")}
	require.NoError(t, d.Publish(context.Background(), msg, errors.New("boom"), "webstore"))

	require.Len(t, w.written, 1)
	out := w.written[0]
	assert.Equal(t, "ecommerce.dlq.ecommerce.warehouse.stock_received", out.Topic)

	headers := map[string]string{}
	for _, h := range out.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "3", headers["dlq.original_partition"])
	assert.Equal(t, "42", headers["dlq.original_offset"])
	assert.Equal(t, "boom", headers["dlq.error"])
	assert.Equal(t, "webstore", headers["dlq.consumer_group"])
}
