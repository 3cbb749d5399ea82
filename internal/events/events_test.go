package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/queue"
	"github.com/imyashkale/inventoryserver/internal/repository"
)

// MockPutItemClient is a hand-written stand-in for the DynamoDB client
type MockPutItemClient struct {
	putItemFunc func(ctx context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	inputs      []*dynamodb.PutItemInput
}

func (m *MockPutItemClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params)
	}
	return &dynamodb.PutItemOutput{}, nil
}

type storedEvent struct {
	EventId     string
	AggregateId string
	RoutingKey  string
	NewValue    string
}

func TestDynamoPublisherPutsConditionalItem(t *testing.T) {
	client := &MockPutItemClient{}
	p := NewDynamoPublisher(client, "InventoryEvents")

	event := models.NewDomainEvent(models.AggregateServer, "srv-1", models.EventNameChanged, "old", "new")
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected one PutItem call, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if aws.ToString(in.TableName) != "InventoryEvents" {
		t.Errorf("table = %q", aws.ToString(in.TableName))
	}
	if aws.ToString(in.ConditionExpression) != "attribute_not_exists(EventId)" {
		t.Errorf("condition = %q", aws.ToString(in.ConditionExpression))
	}

	var got storedEvent
	if err := attributevalue.UnmarshalMap(in.Item, &got); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	want := storedEvent{
		EventId:     event.EventID().String(),
		AggregateId: "srv-1",
		RoutingKey:  "server.namechanged",
		NewValue:    `"new"`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestDynamoPublisherErrors(t *testing.T) {
	tests := []struct {
		name    string
		putErr  error
		wantErr bool
	}{
		{name: "Redelivery is accepted", putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}},
		{name: "Other failures surface", putErr: errors.New("throttled"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockPutItemClient{
				putItemFunc: func(context.Context, *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
					return nil, tt.putErr
				},
			}
			p := NewDynamoPublisher(client, "InventoryEvents")
			err := p.Publish(context.Background(), models.NewDomainEvent(models.AggregateApplication, "app-1", models.EventRegistered, nil, nil))
			if (err != nil) != tt.wantErr {
				t.Errorf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeliveryErrorMatchesBoth(t *testing.T) {
	cause := errors.New("sink down")
	err := error(&DeliveryError{EventID: "e1", RoutingKey: "server.registered", Attempts: 3, Err: cause})

	if !errors.Is(err, models.ErrDelivery) {
		t.Error("expected ErrDelivery to match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the sink error to match")
	}
	if !IsDeliveryError(err) {
		t.Error("expected IsDeliveryError")
	}
}

// fakeOutbox keeps rows in memory so dispatcher outcomes can be inspected
type fakeOutbox struct {
	mu       sync.Mutex
	entries  []repository.OutboxEntry
	status   map[models.ID]string
	attempts map[models.ID]int
	reasons  map[models.ID]string
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{
		status:   map[models.ID]string{},
		attempts: map[models.ID]int{},
		reasons:  map[models.ID]string{},
	}
}

func (f *fakeOutbox) Record(_ context.Context, events ...models.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range events {
		f.entries = append(f.entries, repository.OutboxEntry{Sequence: int64(len(f.entries) + 1), Event: e})
		f.status[e.EventID()] = "pending"
	}
	return nil
}

func (f *fakeOutbox) Pending(_ context.Context, limit int) ([]repository.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.OutboxEntry
	for _, e := range f.entries {
		if f.status[e.Event.EventID()] != "pending" {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, id models.ID, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = "delivered"
	f.attempts[id] = attempts
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id models.ID, attempts int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = "failed"
	f.attempts[id] = attempts
	f.reasons[id] = reason
	return nil
}

func (f *fakeOutbox) statusOf(id models.ID) (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[id], f.attempts[id]
}

// recordingSink fails the first failures calls per event, then accepts
type recordingSink struct {
	mu        sync.Mutex
	failures  int
	calls     map[models.ID]int
	delivered []models.DomainEvent
	notify    chan struct{}
}

func newRecordingSink(failures int) *recordingSink {
	return &recordingSink{failures: failures, calls: map[models.ID]int{}, notify: make(chan struct{}, 64)}
}

func (s *recordingSink) Publish(_ context.Context, e models.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[e.EventID()]++
	if s.calls[e.EventID()] <= s.failures {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, e)
	s.notify <- struct{}{}
	return nil
}

func testDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval:   time.Hour,
		BatchSize:      10,
		Workers:        2,
		MaxTries:       3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func startWorkers(t *testing.T, d *Dispatcher, ctx context.Context) {
	t.Helper()
	d.pool.Start(func(job *queue.DeliveryJob) error { return d.deliver(ctx, job) })
	t.Cleanup(d.pool.Stop)
}

func TestDispatcherDeliversAfterRetry(t *testing.T) {
	ctx := context.Background()
	outbox := newFakeOutbox()
	sink := newRecordingSink(2)
	d := NewDispatcher(outbox, sink, testDispatcherConfig())
	startWorkers(t, d, ctx)

	event := models.NewDomainEvent(models.AggregateServer, "srv-1", models.EventRegistered, nil, "web-1")
	_ = outbox.Record(ctx, event)

	n, err := d.drain(ctx)
	if err != nil || n != 1 {
		t.Fatalf("drain() = %d, %v", n, err)
	}

	status, attempts := outbox.statusOf(event.EventID())
	if status != "delivered" || attempts != 3 {
		t.Errorf("got status %q after %d attempts, want delivered after 3", status, attempts)
	}
}

func TestDispatcherMarksFailedAfterMaxTries(t *testing.T) {
	ctx := context.Background()
	outbox := newFakeOutbox()
	sink := newRecordingSink(100)
	d := NewDispatcher(outbox, sink, testDispatcherConfig())
	startWorkers(t, d, ctx)

	event := models.NewDomainEvent(models.AggregateApplication, "app-1", models.EventDiscarded, false, true)
	_ = outbox.Record(ctx, event)

	if _, err := d.drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	status, attempts := outbox.statusOf(event.EventID())
	if status != "failed" || attempts != 3 {
		t.Errorf("got status %q after %d attempts, want failed after 3", status, attempts)
	}
	if outbox.reasons[event.EventID()] == "" {
		t.Error("expected the failure reason to be stored")
	}

	pending, _ := outbox.Pending(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("failed rows must leave the pending set, %d remain", len(pending))
	}
}

func TestDispatcherKeepsPerAggregateOrder(t *testing.T) {
	ctx := context.Background()
	outbox := newFakeOutbox()
	sink := newRecordingSink(0)
	d := NewDispatcher(outbox, sink, testDispatcherConfig())
	startWorkers(t, d, ctx)

	var want []models.EventKind
	kinds := []models.EventKind{models.EventRegistered, models.EventNameChanged, models.EventCPUChanged, models.EventDiscarded}
	for _, kind := range kinds {
		_ = outbox.Record(ctx, models.NewDomainEvent(models.AggregateServer, "srv-1", kind, nil, nil))
		_ = outbox.Record(ctx, models.NewDomainEvent(models.AggregateServer, "srv-2", kind, nil, nil))
		want = append(want, kind)
	}

	if n, err := d.drain(ctx); err != nil || n != 8 {
		t.Fatalf("drain() = %d, %v", n, err)
	}

	var got []models.EventKind
	for _, e := range sink.delivered {
		if e.AggregateID() == "srv-1" {
			got = append(got, e.Kind())
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("srv-1 order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcherRunWakesOnNotify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outbox := newFakeOutbox()
	sink := newRecordingSink(0)
	d := NewDispatcher(outbox, sink, testDispatcherConfig())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	event := models.NewDomainEvent(models.AggregateServer, "srv-1", models.EventRegistered, nil, nil)
	_ = outbox.Record(ctx, event)
	d.Notify()
	d.Notify()

	select {
	case <-sink.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered after Notify")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestDispatcherDeliversLaterEventsAfterAParkedFailure(t *testing.T) {
	ctx := context.Background()
	outbox := newFakeOutbox()
	var (
		mu        sync.Mutex
		delivered []models.EventKind
	)
	sink := PublisherFunc(func(_ context.Context, e models.DomainEvent) error {
		if e.Kind() == models.EventRegistered {
			return errors.New("rejected by sink")
		}
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, e.Kind())
		return nil
	})
	d := NewDispatcher(outbox, sink, testDispatcherConfig())
	startWorkers(t, d, ctx)

	first := models.NewDomainEvent(models.AggregateServer, "srv-1", models.EventRegistered, nil, nil)
	second := models.NewDomainEvent(models.AggregateServer, "srv-1", models.EventCPUChanged, "4", "8")
	_ = outbox.Record(ctx, first, second)

	if n, err := d.drain(ctx); err != nil || n != 2 {
		t.Fatalf("drain() = %d, %v", n, err)
	}

	if status, _ := outbox.statusOf(first.EventID()); status != "failed" {
		t.Errorf("first event: status %q, want failed", status)
	}
	if status, _ := outbox.statusOf(second.EventID()); status != "delivered" {
		t.Errorf("second event: status %q, want delivered", status)
	}
	if diff := cmp.Diff([]models.EventKind{models.EventCPUChanged}, delivered); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}
}
