package purchaseorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/messaging"
	service "github.com/Additional-Code/procura/internal/service/purchaseorder"
	"github.com/Additional-Code/procura/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/procura/worker/purchaseorder")

// Module registers the purchase-order event handlers.
var Module = fx.Module("worker_purchase_order",
	fx.Provide(
		NewSender,
		fx.Annotate(NewAuditHandler, fx.ResultTags(`group:"worker.handlers"`)),
		fx.Annotate(NewNotificationHandler, fx.ResultTags(`group:"worker.handlers"`)),
	),
)

// NewAuditHandler records every lifecycle event in the audit store.
func NewAuditHandler(store audit.Store, logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.purchase_orders.audit", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("event_type", msg.EventType()),
		))
		defer span.End()

		event, err := decode(msg)
		if err != nil {
			logger.Error("failed to decode purchase order event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			// A malformed payload never becomes valid; acknowledge it.
			return nil
		}

		if err := store.Record(ctx, EntryFor(event)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "audit write failed")
			return fmt.Errorf("record audit entry: %w", err)
		}

		logger.Info("purchase order event audited",
			zap.String("type", event.Type),
			zap.Stringer("order_id", event.OrderID),
			zap.String("status", string(event.Status)),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Name:       "audit",
		EventTypes: []string{service.EventCreated, service.EventStatusChanged},
		Handler:    handler,
	}
}

// EntryFor maps a lifecycle event to its audit entry.
func EntryFor(event service.Event) *audit.Entry {
	entry := &audit.Entry{
		Action:      event.Type,
		OrderID:     event.OrderID.String(),
		OrderNumber: event.OrderNumber,
		Site:        event.Site,
		ActorID:     event.OrderedBy.String(),
		OccurredAt:  event.OccurredAt,
		Data: map[string]any{
			"status":       string(event.Status),
			"total_amount": event.TotalAmount.StringFixed(2),
			"currency":     event.Currency,
			"supplier":     event.Supplier.Name,
		},
	}
	if event.ID != uuid.Nil {
		entry.ID = event.ID.String()
	}
	if c := event.Change; c != nil {
		if c.ActorID != uuid.Nil {
			entry.ActorID = c.ActorID.String()
		}
		entry.Data["from"] = string(c.From)
		entry.Data["to"] = string(c.To)
		if c.Note != "" {
			entry.Data["note"] = c.Note
		}
	}
	return entry
}

func decode(msg messaging.Message) (service.Event, error) {
	var event service.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return service.Event{}, err
	}
	if event.OrderID == uuid.Nil {
		return service.Event{}, fmt.Errorf("event %q without order id", event.Type)
	}
	return event, nil
}
