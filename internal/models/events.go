package models

import "time"

// Event types
const (
	EventTypeInvoiceCommitted = "INVOICE_COMMITTED"
	EventTypeInvoiceReversed  = "INVOICE_REVERSED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockDelta describes the quantity change one invoice line applied to a
// product, so consumers can refresh per-product views without a full reload.
type StockDelta struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// InvoiceCommittedEvent published after an invoice and its stock
// decrements are durably applied.
type InvoiceCommittedEvent struct {
	BaseEvent
	InvoiceID     string       `json:"invoice_id"`
	InvoiceNumber string       `json:"invoice_number"`
	CustomerID    string       `json:"customer_id"`
	FinalAmount   string       `json:"final_amount"`
	Deltas        []StockDelta `json:"deltas"`
}

// InvoiceReversedEvent published after an invoice deletion and its stock
// restores are durably applied.
type InvoiceReversedEvent struct {
	BaseEvent
	InvoiceID     string       `json:"invoice_id"`
	InvoiceNumber string       `json:"invoice_number"`
	Deltas        []StockDelta `json:"deltas"`
}
