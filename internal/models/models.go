package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog. Quantity is the single
// source of truth for stock; availability is always derived from it.
type Product struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Available reports whether the product has stock on hand.
func (p *Product) Available() bool {
	return p.Quantity > 0
}

// Service represents a fixed-price service offering. No stock coupling.
type Service struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Customer represents a customer record. Invoices snapshot these fields
// at commit time rather than referencing them live.
type Customer struct {
	ID           string    `db:"id" json:"id"`
	CustomerName string    `db:"customer_name" json:"customerName"`
	CarType      string    `db:"car_type" json:"carType"`
	CarNumber    string    `db:"car_number" json:"carNumber"`
	Phone        string    `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Discount modes
const (
	DiscountFixedAmount = "fixedAmount"
	DiscountPercentage  = "percentage"
)

// Payment methods
const (
	PaymentCash = "cash"
	PaymentVisa = "visa"
)

// InvoiceProduct is one product line on a committed invoice. Quantity and
// MaxQuantity are recorded as they were at authoring time so that a later
// reversal restores exactly what this invoice deducted.
type InvoiceProduct struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	MaxQuantity int             `json:"maxQuantity"`
}

// InvoiceService is one service line on a committed invoice.
type InvoiceService struct {
	ServiceID   string          `json:"serviceId"`
	ServiceName string          `json:"serviceName"`
	Price       decimal.Decimal `json:"price"`
}

// InvoiceProducts is stored as a JSONB column.
type InvoiceProducts []InvoiceProduct

func (p InvoiceProducts) Value() (driver.Value, error) {
	if p == nil {
		p = InvoiceProducts{}
	}
	return json.Marshal(p)
}

func (p *InvoiceProducts) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// InvoiceServices is stored as a JSONB column.
type InvoiceServices []InvoiceService

func (s InvoiceServices) Value() (driver.Value, error) {
	if s == nil {
		s = InvoiceServices{}
	}
	return json.Marshal(s)
}

func (s *InvoiceServices) Scan(src interface{}) error {
	return scanJSON(src, s)
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

// Invoice is the committed, immutable snapshot of an invoice draft.
// Line items are never mutated after commit.
type Invoice struct {
	ID            string          `db:"id" json:"id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoiceNumber"`
	CustomerID    string          `db:"customer_id" json:"customerId"`
	CustomerName  string          `db:"customer_name" json:"customerName"`
	CarType       string          `db:"car_type" json:"carType"`
	CarNumber     string          `db:"car_number" json:"carNumber"`
	Phone         string          `db:"phone" json:"phone"`
	InvoiceDate   string          `db:"invoice_date" json:"invoiceDate"`
	Products      InvoiceProducts `db:"products" json:"products"`
	Services      InvoiceServices `db:"services" json:"services"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	DiscountType  string          `db:"discount_type" json:"discountType"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"totalAmount"`
	FinalAmount   decimal.Decimal `db:"final_amount" json:"finalAmount"`
	PaymentMethod string          `db:"payment_method" json:"paymentMethod"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
