package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/chat"
	"github.com/spec-kit/fulfillment-service/internal/config"
	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// Recipient identifies one fanout delivery target.
type Recipient string

const (
	RecipientCustomerDM   Recipient = "customerDM"
	RecipientWorkerDM     Recipient = "workerDM"
	RecipientOrderChannel Recipient = "orderChannel"
	RecipientStaffLog     Recipient = "staffLogChannel"
)

// DeliveryReport records the per-recipient outcome of a fanout. A nil entry
// value means the delivery succeeded.
type DeliveryReport map[Recipient]error

// Ok reports whether the recipient's delivery succeeded.
func (r DeliveryReport) Ok(recipient Recipient) bool {
	err, attempted := r[recipient]
	return attempted && err == nil
}

// Failed returns the recipients whose delivery failed.
func (r DeliveryReport) Failed() []Recipient {
	var failed []Recipient
	for recipient, err := range r {
		if err != nil {
			failed = append(failed, recipient)
		}
	}
	return failed
}

// NotificationFanout delivers a status update to a set of recipients. Each
// delivery is isolated: one unreachable target degrades to a logged warning
// and an entry in the report, never an error to the caller.
type NotificationFanout struct {
	messenger chat.Messenger
	channels  config.ChannelsConfig
	logger    *zap.Logger
}

// NewNotificationFanout creates the fanout.
func NewNotificationFanout(messenger chat.Messenger, channels config.ChannelsConfig, logger *zap.Logger) *NotificationFanout {
	return &NotificationFanout{messenger: messenger, channels: channels, logger: logger}
}

// Notify sends body to each requested recipient, resolving targets from the
// order. The returned report lets callers branch on partial failure.
func (f *NotificationFanout) Notify(ctx context.Context, order *domain.Order, body string, recipients ...Recipient) DeliveryReport {
	report := make(DeliveryReport, len(recipients))
	for _, recipient := range recipients {
		err := f.deliver(ctx, order, body, recipient)
		report[recipient] = err
		if err != nil {
			f.logger.Warn("notification delivery failed",
				zap.String("order_id", order.ID),
				zap.String("recipient", string(recipient)),
				zap.Error(err),
			)
		}
	}
	return report
}

func (f *NotificationFanout) deliver(ctx context.Context, order *domain.Order, body string, recipient Recipient) error {
	switch recipient {
	case RecipientCustomerDM:
		return f.messenger.SendDirect(ctx, order.CustomerID, body)
	case RecipientWorkerDM:
		if order.WorkerID == nil {
			return errNoWorker
		}
		return f.messenger.SendDirect(ctx, *order.WorkerID, body)
	case RecipientOrderChannel:
		return f.messenger.SendChannel(ctx, order.ChannelID, body)
	case RecipientStaffLog:
		return f.messenger.SendChannel(ctx, f.channels.StaffLogChannelID, body)
	default:
		return errUnknownRecipient
	}
}

var (
	errNoWorker         = recipientError("order has no assigned worker")
	errUnknownRecipient = recipientError("unknown recipient")
)

type recipientError string

func (e recipientError) Error() string { return string(e) }
