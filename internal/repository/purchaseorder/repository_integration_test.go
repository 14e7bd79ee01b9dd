//go:build integration

package purchaseorder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/procura/internal/database/dbtest"
	"github.com/Additional-Code/procura/internal/entity"
)

func newOrder(number string) *entity.PurchaseOrder {
	return &entity.PurchaseOrder{
		ID:          uuid.New(),
		OrderNumber: number,
		Status:      entity.StatusDraft,
		Site:        "A",
		Supplier:    entity.SupplierSnapshot{ID: uuid.New(), Name: "Acme", Email: "sales@acme.test"},
		TotalAmount: decimal.NewFromInt(10),
		Currency:    "USD",
		OrderedBy:   uuid.New(),
		Version:     1,
		Items: []*entity.LineItem{{
			ProductID: "SKU-1", Name: "Bolts", Quantity: 4,
			UnitPrice: decimal.RequireFromString("2.5"), TotalPrice: decimal.NewFromInt(10),
		}},
	}
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	repo := NewRepository(dbtest.Postgres(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newOrder("PO-1001")))
	err := repo.Create(ctx, newOrder("PO-1001"))

	assert.ErrorIs(t, err, ErrDuplicateNumber)
	orders, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	repo := NewRepository(dbtest.Postgres(t))
	ctx := context.Background()
	order := newOrder("PO-2001")
	require.NoError(t, repo.Create(ctx, order))

	first, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	first.Status = entity.StatusPending
	require.NoError(t, repo.Transition(ctx, first, entity.StatusDraft, &entity.StatusHistoryEntry{
		PurchaseOrderID: order.ID, FromStatus: entity.StatusDraft, ToStatus: entity.StatusPending, ActorID: order.OrderedBy,
	}))

	second.Status = entity.StatusPending
	err = repo.Transition(ctx, second, entity.StatusDraft, &entity.StatusHistoryEntry{
		PurchaseOrderID: order.ID, FromStatus: entity.StatusDraft, ToStatus: entity.StatusPending, ActorID: order.OrderedBy,
	})
	assert.ErrorIs(t, err, ErrStale)

	history, err := repo.StatusHistory(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, stored.Status)
	assert.EqualValues(t, 2, stored.Version)
}

func TestSummariesComputeTotalsFromItems(t *testing.T) {
	repo := NewRepository(dbtest.Postgres(t))
	ctx := context.Background()

	withItems := newOrder("PO-3001")
	withItems.Status = entity.StatusApproved
	withItems.TotalAmount = decimal.RequireFromString("13.75")
	withItems.Items = append(withItems.Items, &entity.LineItem{
		ProductID: "SKU-2", Name: "Nuts", Quantity: 3,
		UnitPrice: decimal.RequireFromString("1.25"), TotalPrice: decimal.RequireFromString("3.75"),
	})
	require.NoError(t, repo.Create(ctx, withItems))

	empty := newOrder("PO-3002")
	empty.Status = entity.StatusRejected
	empty.Site = "B"
	empty.Items = nil
	require.NoError(t, repo.Create(ctx, empty))

	require.NoError(t, repo.Create(ctx, newOrder("PO-3003")))

	rows, err := repo.Summaries(ctx, entity.DecidedStatuses(), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byNumber := map[string]entity.OrderSummary{}
	for _, r := range rows {
		byNumber[r.OrderNumber] = r
	}

	got := byNumber["PO-3001"]
	assert.True(t, decimal.RequireFromString("13.75").Equal(got.ItemsTotal), got.ItemsTotal.String())
	assert.EqualValues(t, 2, got.ItemCount)
	assert.Equal(t, "Acme", got.Supplier.Name)
	assert.Equal(t, entity.StatusApproved, got.Status)

	none := byNumber["PO-3002"]
	assert.True(t, none.ItemsTotal.IsZero(), none.ItemsTotal.String())
	assert.Zero(t, none.ItemCount)

	siteB, err := repo.Summaries(ctx, entity.DecidedStatuses(), "B")
	require.NoError(t, err)
	require.Len(t, siteB, 1)
	assert.Equal(t, "PO-3002", siteB[0].OrderNumber)
}

func TestSaveTrackingRoundTripsHistory(t *testing.T) {
	repo := NewRepository(dbtest.Postgres(t))
	ctx := context.Background()
	order := newOrder("PO-4001")
	order.Status = entity.StatusApproved
	require.NoError(t, repo.Create(ctx, order))

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	stale, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	eta := at.Add(72 * time.Hour)
	stored.TrackingNumber = "1Z999"
	stored.ShippingStatus = "in_transit"
	stored.CurrentLocation = "Reno"
	stored.EstimatedDelivery = &eta
	stored.LastStatusUpdate = &at
	stored.TrackingHistory = []entity.TrackingEvent{
		{Status: "picked_up", Location: "Oakland", At: at.Add(-time.Hour)},
		{Status: "in_transit", Location: "Reno", Note: "on schedule", At: at},
	}
	require.NoError(t, repo.SaveTracking(ctx, stored))
	assert.EqualValues(t, 2, stored.Version)

	reloaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1Z999", reloaded.TrackingNumber)
	assert.Equal(t, "Reno", reloaded.CurrentLocation)
	require.NotNil(t, reloaded.EstimatedDelivery)
	assert.True(t, eta.Equal(*reloaded.EstimatedDelivery))
	require.Len(t, reloaded.TrackingHistory, 2)
	assert.Equal(t, "picked_up", reloaded.TrackingHistory[0].Status)
	assert.Equal(t, "on schedule", reloaded.TrackingHistory[1].Note)
	assert.True(t, at.Equal(reloaded.TrackingHistory[1].At))
	assert.EqualValues(t, 2, reloaded.Version)

	stale.ShippingStatus = "delivered"
	err = repo.SaveTracking(ctx, stale)
	assert.ErrorIs(t, err, ErrStale)
	assert.EqualValues(t, 1, stale.Version)

	unchanged, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_transit", unchanged.ShippingStatus)
}

func TestListFiltersByStatusAndSite(t *testing.T) {
	repo := NewRepository(dbtest.Postgres(t))
	ctx := context.Background()

	for _, o := range []struct {
		number string
		status entity.Status
		site   string
	}{
		{"PO-5001", entity.StatusDraft, "A"},
		{"PO-5002", entity.StatusPending, "A"},
		{"PO-5003", entity.StatusPending, "B"},
		{"PO-5004", entity.StatusSent, "B"},
	} {
		order := newOrder(o.number)
		order.Status = o.status
		order.Site = o.site
		require.NoError(t, repo.Create(ctx, order))
	}

	numbers := func(f Filter) []string {
		t.Helper()
		orders, err := repo.List(ctx, f)
		require.NoError(t, err)
		out := make([]string, 0, len(orders))
		for _, o := range orders {
			out = append(out, o.OrderNumber)
			assert.Len(t, o.Items, 1, o.OrderNumber)
		}
		return out
	}

	assert.Len(t, numbers(Filter{}), 4)
	assert.ElementsMatch(t, []string{"PO-5002", "PO-5003"}, numbers(Filter{Status: entity.StatusPending}))
	assert.ElementsMatch(t, []string{"PO-5003", "PO-5004"}, numbers(Filter{Site: "B"}))
	assert.Equal(t, []string{"PO-5002"}, numbers(Filter{Status: entity.StatusPending, Site: "A"}))
	assert.Empty(t, numbers(Filter{Status: entity.StatusRejected}))
	assert.Len(t, numbers(Filter{Limit: 2}), 2)
}
