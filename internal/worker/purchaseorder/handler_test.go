package purchaseorder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/messaging"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	service "github.com/Additional-Code/procura/internal/service/purchaseorder"
	"github.com/Additional-Code/procura/internal/worker"
)

func sampleOrder(status entity.Status) *entity.PurchaseOrder {
	return &entity.PurchaseOrder{
		ID:          uuid.New(),
		OrderNumber: "PO-1001",
		Status:      status,
		Site:        "A",
		Supplier:    entity.SupplierSnapshot{ID: uuid.New(), Name: "Acme", Email: "sales@acme.test"},
		TotalAmount: decimal.RequireFromString("42.5"),
		Currency:    "USD",
		OrderedBy:   uuid.New(),
	}
}

func encode(t *testing.T, ev service.Event) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return messaging.Message{
		Topic:   "purchase-orders.events",
		Value:   raw,
		Headers: map[string]string{messaging.HeaderEventType: ev.Type},
	}
}

func TestAuditHandlerRecordsTransitions(t *testing.T) {
	store := audit.NewMemoryStore()
	reg := NewAuditHandler(store, zap.NewNop())
	assert.ElementsMatch(t, []string{service.EventCreated, service.EventStatusChanged}, reg.EventTypes)

	order := sampleOrder(entity.StatusApproved)
	approver := uuid.New()
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	ev := service.NewEvent(service.EventStatusChanged, order, &service.StatusChange{
		From: entity.StatusPending, To: entity.StatusApproved, ActorID: approver, Note: "within budget",
	}, at)

	require.NoError(t, reg.Handler(context.Background(), encode(t, ev)))

	entries, err := store.ForOrder(context.Background(), order.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, service.EventStatusChanged, got.Action)
	assert.Equal(t, approver.String(), got.ActorID)
	assert.Equal(t, "pending", got.Data["from"])
	assert.Equal(t, "approved", got.Data["to"])
	assert.Equal(t, "42.50", got.Data["total_amount"])
	assert.Equal(t, "within budget", got.Data["note"])
	assert.True(t, at.Equal(got.OccurredAt))
}

func TestAuditHandlerAcknowledgesMalformedPayload(t *testing.T) {
	store := audit.NewMemoryStore()
	reg := NewAuditHandler(store, zap.NewNop())

	assert.NoError(t, reg.Handler(context.Background(), messaging.Message{Value: []byte("{")}))
	assert.NoError(t, reg.Handler(context.Background(), messaging.Message{Value: []byte(`{"type":"purchase_order.created"}`)}))
}

type failingStore struct{ audit.Store }

func (failingStore) Record(context.Context, *audit.Entry) error { return errors.New("mongo down") }

func TestAuditHandlerRetriesStoreFailures(t *testing.T) {
	reg := NewAuditHandler(failingStore{}, zap.NewNop())
	ev := service.NewEvent(service.EventCreated, sampleOrder(entity.StatusDraft), nil, time.Now())

	assert.Error(t, reg.Handler(context.Background(), encode(t, ev)))
}

type users map[uuid.UUID]*entity.User

func (u users) GetByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, userrepo.ErrNotFound
}

type outbox struct{ sent []Email }

func (o *outbox) Send(_ context.Context, email Email) error {
	o.sent = append(o.sent, email)
	return nil
}

func TestNotifierRecipients(t *testing.T) {
	box := &outbox{}
	order := sampleOrder(entity.StatusSent)
	requester := &entity.User{ID: order.OrderedBy, Email: "clerk@site-a.test"}
	n := NewNotifier(users{requester.ID: requester}, box, "purchasing@procura.local", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, encode(t, service.NewEvent(service.EventStatusChanged, order, nil, time.Now()))))
	require.Len(t, box.sent, 1)
	assert.Equal(t, "sales@acme.test", box.sent[0].To)
	assert.Contains(t, box.sent[0].Body, "42.50 USD")

	order.Status = entity.StatusRejected
	change := &service.StatusChange{From: entity.StatusPending, To: entity.StatusRejected, Note: "over budget"}
	require.NoError(t, n.Handle(ctx, encode(t, service.NewEvent(service.EventStatusChanged, order, change, time.Now()))))
	require.Len(t, box.sent, 2)
	assert.Equal(t, "clerk@site-a.test", box.sent[1].To)
	assert.Contains(t, box.sent[1].Body, "over budget")

	order.Status = entity.StatusPending
	require.NoError(t, n.Handle(ctx, encode(t, service.NewEvent(service.EventStatusChanged, order, nil, time.Now()))))
	assert.Len(t, box.sent, 2)

	order.Status = entity.StatusApproved
	order.OrderedBy = uuid.New()
	require.NoError(t, n.Handle(ctx, encode(t, service.NewEvent(service.EventStatusChanged, order, nil, time.Now()))))
	assert.Len(t, box.sent, 2)
}

func TestNotificationHandlerDisabled(t *testing.T) {
	sender, err := NewSender(config.Config{}, zap.NewNop())
	require.NoError(t, err)
	reg := NewNotificationHandler(NotificationParams{
		Sender: sender,
		Config: config.Config{},
		Logger: zap.NewNop(),
	})

	assert.Nil(t, reg.Handler)
	assert.Equal(t, []string{service.EventStatusChanged}, reg.EventTypes)
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	attempts int
	sent     []Email
}

func (f *flakySender) Send(_ context.Context, email Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *flakySender) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestRedeliveryAfterNotificationFailureAuditsOnce(t *testing.T) {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 1

	store := audit.NewMemoryStore()
	sender := &flakySender{failures: 2}
	client := messaging.NewMemoryClient("purchase-orders.events", 4)
	engine := worker.NewEngine(worker.Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []worker.HandlerRegistration{
			NewAuditHandler(store, zap.NewNop()),
			{
				Name:       "notification",
				EventTypes: []string{service.EventStatusChanged},
				Handler:    NewNotifier(users{}, sender, "purchasing@procura.local", zap.NewNop()).Handle,
			},
		},
	})

	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Stop(ctx) })

	order := sampleOrder(entity.StatusSent)
	change := &service.StatusChange{From: entity.StatusApproved, To: entity.StatusSent}
	require.NoError(t, client.Publish(ctx, encode(t, service.NewEvent(service.EventStatusChanged, order, change, time.Now()))))

	require.Eventually(t, func() bool { return sender.delivered() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, engine.Stop(ctx))

	entries, err := store.ForOrder(ctx, order.ID.String(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 3, sender.attempts)
}

func TestAuditEntryKeepsEventID(t *testing.T) {
	store := audit.NewMemoryStore()
	reg := NewAuditHandler(store, zap.NewNop())
	ev := service.NewEvent(service.EventCreated, sampleOrder(entity.StatusDraft), nil, time.Now())
	msg := encode(t, ev)

	require.NoError(t, reg.Handler(context.Background(), msg))
	require.NoError(t, reg.Handler(context.Background(), msg))

	entries, err := store.ForOrder(context.Background(), ev.OrderID.String(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ev.ID.String(), entries[0].ID)
}
