package purchaseorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/messaging"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	service "github.com/Additional-Code/procura/internal/service/purchaseorder"
	"github.com/Additional-Code/procura/internal/worker"
)

// UserLookup resolves the requester of an order.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

// NotificationParams collects the notification handler dependencies.
type NotificationParams struct {
	fx.In

	Users  *userrepo.Repository
	Sender Sender
	Config config.Config
	Logger *zap.Logger
}

// NewNotificationHandler mails suppliers when an order is sent and requesters
// when their order is decided. Without ENABLE_EMAIL_CHECKER the registration
// carries no handler.
func NewNotificationHandler(p NotificationParams) worker.HandlerRegistration {
	reg := worker.HandlerRegistration{
		Name:       "notification",
		EventTypes: []string{service.EventStatusChanged},
	}
	if !p.Config.Notification.EmailEnabled {
		p.Logger.Info("email notifications disabled")
		return reg
	}
	n := &Notifier{users: p.Users, sender: p.Sender, from: p.Config.Notification.Sender, logger: p.Logger}
	reg.Handler = n.Handle
	return reg
}

// Notifier turns status changes into emails.
type Notifier struct {
	users  UserLookup
	sender Sender
	from   string
	logger *zap.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(users UserLookup, sender Sender, from string, logger *zap.Logger) *Notifier {
	return &Notifier{users: users, sender: sender, from: from, logger: logger}
}

// Handle is the worker handler for status-change events.
func (n *Notifier) Handle(ctx context.Context, msg messaging.Message) error {
	ctx, span := workerTracer.Start(ctx, "worker.purchase_orders.notify", trace.WithAttributes(
		attribute.String("event_type", msg.EventType()),
	))
	defer span.End()

	event, err := decode(msg)
	if err != nil {
		n.logger.Error("failed to decode purchase order event", zap.Error(err))
		return nil
	}

	email, ok, err := n.compose(ctx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compose failed")
		return err
	}
	if !ok {
		return nil
	}
	if err := n.sender.Send(ctx, email); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (n *Notifier) compose(ctx context.Context, event service.Event) (Email, bool, error) {
	switch event.Status {
	case entity.StatusSent:
		if event.Supplier.Email == "" {
			n.logger.Warn("supplier has no email; skipping", zap.Stringer("order_id", event.OrderID))
			return Email{}, false, nil
		}
		return Email{
			From:    n.from,
			To:      event.Supplier.Email,
			Subject: fmt.Sprintf("Purchase order %s", event.OrderNumber),
			Body: fmt.Sprintf("Dear %s,\n\nplease find purchase order %s for %s %s (site %s).\n",
				event.Supplier.Name, event.OrderNumber, event.TotalAmount.StringFixed(2), event.Currency, event.Site),
		}, true, nil
	case entity.StatusApproved, entity.StatusRejected:
		requester, err := n.users.GetByID(ctx, event.OrderedBy)
		if errors.Is(err, userrepo.ErrNotFound) {
			n.logger.Warn("requester not found; skipping", zap.Stringer("user_id", event.OrderedBy))
			return Email{}, false, nil
		}
		if err != nil {
			return Email{}, false, fmt.Errorf("load requester: %w", err)
		}
		body := fmt.Sprintf("Purchase order %s was %s.\n", event.OrderNumber, event.Status)
		if event.Change != nil && event.Change.Note != "" {
			body += "\nNote: " + event.Change.Note + "\n"
		}
		return Email{
			From:    n.from,
			To:      requester.Email,
			Subject: fmt.Sprintf("Purchase order %s %s", event.OrderNumber, event.Status),
			Body:    body,
		}, true, nil
	default:
		return Email{}, false, nil
	}
}
