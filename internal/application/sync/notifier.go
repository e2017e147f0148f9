package sync

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NewOrderAlert carries the data the notification collaborator needs to
// announce a freshly admitted order
type NewOrderAlert struct {
	OrderID      string          `json:"orderId"`
	CustomerName string          `json:"customerName"`
	ItemCount    int             `json:"itemCount"`
	Total        decimal.Decimal `json:"total"`
}

// Notifier is the port to the notification/indicator collaborator. The
// pipeline fires NotifyNewOrder exactly once per admitted live event;
// reconciliation imports never notify.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, alert NewOrderAlert)
	IncrementUnread(ctx context.Context)
}

// LogNotifier is the default Notifier: it logs alerts and keeps the unread
// counter in memory
type LogNotifier struct {
	logger *zap.Logger
	unread int64
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyNewOrder logs the new-order alert
func (n *LogNotifier) NotifyNewOrder(_ context.Context, alert NewOrderAlert) {
	n.logger.Info("new order arrived",
		zap.String("order_id", alert.OrderID),
		zap.String("customer", alert.CustomerName),
		zap.Int("items", alert.ItemCount),
		zap.String("total", alert.Total.StringFixed(2)),
	)
}

// IncrementUnread bumps the unread-order indicator
func (n *LogNotifier) IncrementUnread(_ context.Context) {
	atomic.AddInt64(&n.unread, 1)
}

// Unread returns the current unread counter
func (n *LogNotifier) Unread() int64 {
	return atomic.LoadInt64(&n.unread)
}

// ResetUnread clears the unread counter, e.g. when the operator opens the
// order list
func (n *LogNotifier) ResetUnread() {
	atomic.StoreInt64(&n.unread, 0)
}
