// Package notify delivers transactional emails outside of request
// transactions.
//
// Services enqueue a Message after their transaction commits. A fixed pool of
// workers renders and sends it. Delivery is best effort: failures are logged
// and never surface to the caller.
package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

// Template names a registered email body.
type Template string

const (
	TemplateOrderConfirmation Template = "orderConfirmation"
	TemplateOrderCancelled    Template = "orderCancelled"
	TemplateOrderStatusUpdate Template = "orderStatusUpdate"
	TemplateQuoteRequested    Template = "quoteRequested"
	TemplateQuoteUpdated      Template = "quoteUpdated"
	TemplateQuoteSent         Template = "quoteSent"
	TemplateQuoteAccepted     Template = "quoteAccepted"
	TemplateQuoteDeclined     Template = "quoteDeclined"
	TemplatePasswordReset     Template = "passwordReset"
	TemplateLowStock          Template = "lowStockAlert"
)

// Message is a single email to deliver.
type Message struct {
	To       string
	Subject  string
	Template Template
	Data     any
}

// OrderLine is one line of an order email.
type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// OrderEmail is the data for the order templates.
type OrderEmail struct {
	CustomerName  string
	OrderNumber   string
	Status        string
	PaymentStatus string
	Total         decimal.Decimal
	Lines         []OrderLine
}

// QuoteEmail is the data for the quote templates.
type QuoteEmail struct {
	CustomerName  string
	CustomerEmail string
	QuoteID       string
	EventType     string
	Description   string
	Status        string
	Comment       string
	ValidityDate  *time.Time
	Total         decimal.Decimal
}

// PasswordResetEmail is the data for TemplatePasswordReset.
type PasswordResetEmail struct {
	Name     string
	ResetURL string
}

// LowStockLine is one product in a low stock report.
type LowStockLine struct {
	Name  string
	SKU   string
	Stock int
}

// LowStockEmail is the data for TemplateLowStock.
type LowStockEmail struct {
	Threshold int
	Products  []LowStockLine
}
