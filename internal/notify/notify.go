// Package notify delivers customer-facing notifications. Delivery is
// simulated: messages are logged, never sent. The core signals events and
// does not care whether anything goes out.
package notify

import "log"

// Notifier receives business events worth telling a customer about.
type Notifier interface {
	SaleRecorded(saleID int64, client string, totalCents int64)
	OrderStatusChanged(orderID int64, client string, email string, status string)
	OrderConverted(orderID int64, saleID int64, client string)
}

// EmailSimulator logs what a real mailer would send. From is the configured
// sender address, shown in the log lines for operator sanity checks.
type EmailSimulator struct {
	From string
}

func NewEmailSimulator(from string) *EmailSimulator {
	if from == "" {
		from = "no-reply@slingerp.local"
	}
	return &EmailSimulator{From: from}
}

func (e *EmailSimulator) SaleRecorded(saleID int64, client string, totalCents int64) {
	log.Printf("[notify] simulated email from=%s: sale #%d recorded for %q, total %d centavos", e.From, saleID, client, totalCents)
}

func (e *EmailSimulator) OrderStatusChanged(orderID int64, client string, email string, status string) {
	to := email
	if to == "" {
		to = "(no address on file)"
	}
	log.Printf("[notify] simulated email from=%s to=%s: order #%d for %q is now %q", e.From, to, orderID, client, status)
}

func (e *EmailSimulator) OrderConverted(orderID int64, saleID int64, client string) {
	log.Printf("[notify] simulated email from=%s: order #%d for %q closed as sale #%d", e.From, orderID, client, saleID)
}

// Noop discards every event. Used in tests.
type Noop struct{}

func (Noop) SaleRecorded(int64, string, int64)                {}
func (Noop) OrderStatusChanged(int64, string, string, string) {}
func (Noop) OrderConverted(int64, int64, string)              {}
