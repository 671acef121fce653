package billing

import (
	"time"

	"invoice-service/internal/models"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// round2 rounds to 2 decimal places, half away from zero. All amounts in
// this engine are non-negative except a possibly negative final amount.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Totals holds the derived amounts of a draft.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Draft accumulates invoice line items and a discount, recomputing totals
// on every mutation. It performs no I/O: stock validation runs against the
// product snapshots handed to AddProductLine, never against live storage.
type Draft struct {
	customerID    string
	customerName  string
	carType       string
	carNumber     string
	phone         string
	invoiceNumber string
	invoiceDate   string
	paymentMethod string

	products []models.InvoiceProduct
	services []models.InvoiceService

	discount     decimal.Decimal
	discountType string

	totalAmount decimal.Decimal
	finalAmount decimal.Decimal
}

// NewDraft creates an empty draft dated today, paid cash, with a zero
// fixed discount.
func NewDraft() *Draft {
	return &Draft{
		invoiceDate:   time.Now().Format("2006-01-02"),
		paymentMethod: models.PaymentCash,
		discount:      decimal.Zero,
		discountType:  models.DiscountFixedAmount,
	}
}

// SetCustomer snapshots the customer's fields onto the draft. The invoice
// will not follow later edits to the customer record.
func (d *Draft) SetCustomer(c models.Customer) {
	d.customerID = c.ID
	d.customerName = c.CustomerName
	d.carType = c.CarType
	d.carNumber = c.CarNumber
	d.phone = c.Phone
}

// SetInvoiceNumber sets a caller-supplied invoice number. When empty, the
// commit coordinator generates one.
func (d *Draft) SetInvoiceNumber(number string) {
	d.invoiceNumber = number
}

// SetInvoiceDate sets the invoice date (ISO date, no time component).
func (d *Draft) SetInvoiceDate(date string) {
	d.invoiceDate = date
}

// SetPaymentMethod records how the invoice is paid.
func (d *Draft) SetPaymentMethod(method string) {
	d.paymentMethod = method
}

// AddProductLine appends a product line with quantity validated against
// the snapshot carried by p. The unit price defaults to the product's
// current price and stays editable via UpdateProductPrice.
func (d *Draft) AddProductLine(p models.Product, quantity int) error {
	if quantity <= 0 {
		return &InvalidQuantityError{Quantity: quantity}
	}
	for _, line := range d.products {
		if line.ProductID == p.ID {
			return &DuplicateLineError{Kind: "product", Ref: p.ID, Name: p.Name}
		}
	}
	if quantity > p.Quantity {
		return &InsufficientStockError{ProductID: p.ID, Requested: quantity, Available: p.Quantity}
	}

	d.products = append(d.products, models.InvoiceProduct{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		Price:       p.Price,
		Total:       round2(p.Price.Mul(decimal.NewFromInt(int64(quantity)))),
		MaxQuantity: p.Quantity,
	})
	d.recompute()
	return nil
}

// AddServiceLine appends a service line at the given price. Services have
// an implicit quantity of 1.
func (d *Draft) AddServiceLine(s models.Service, price decimal.Decimal) error {
	if !price.IsPositive() {
		return &InvalidPriceError{Price: price}
	}
	for _, line := range d.services {
		if line.ServiceID == s.ID {
			return &DuplicateLineError{Kind: "service", Ref: s.ID, Name: s.Name}
		}
	}

	d.services = append(d.services, models.InvoiceService{
		ServiceID:   s.ID,
		ServiceName: s.Name,
		Price:       price,
	})
	d.recompute()
	return nil
}

// UpdateProductQuantity changes a product line's quantity, re-validating
// against the snapshot quantity recorded when the line was added.
func (d *Draft) UpdateProductQuantity(index, quantity int) error {
	if index < 0 || index >= len(d.products) {
		return ErrLineIndex
	}
	if quantity <= 0 {
		return &InvalidQuantityError{Quantity: quantity}
	}
	line := &d.products[index]
	if quantity > line.MaxQuantity {
		return &InsufficientStockError{ProductID: line.ProductID, Requested: quantity, Available: line.MaxQuantity}
	}

	line.Quantity = quantity
	line.Total = round2(line.Price.Mul(decimal.NewFromInt(int64(quantity))))
	d.recompute()
	return nil
}

// UpdateProductPrice changes a product line's unit price. Zero is allowed
// (giveaway lines), negative is not.
func (d *Draft) UpdateProductPrice(index int, price decimal.Decimal) error {
	if index < 0 || index >= len(d.products) {
		return ErrLineIndex
	}
	if price.IsNegative() {
		return &InvalidPriceError{Price: price}
	}
	line := &d.products[index]
	line.Price = price
	line.Total = round2(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	d.recompute()
	return nil
}

// RemoveProductLine removes a product line by index.
func (d *Draft) RemoveProductLine(index int) error {
	if index < 0 || index >= len(d.products) {
		return ErrLineIndex
	}
	d.products = append(d.products[:index], d.products[index+1:]...)
	d.recompute()
	return nil
}

// RemoveServiceLine removes a service line by index.
func (d *Draft) RemoveServiceLine(index int) error {
	if index < 0 || index >= len(d.services) {
		return ErrLineIndex
	}
	d.services = append(d.services[:index], d.services[index+1:]...)
	d.recompute()
	return nil
}

// SetDiscount sets the discount mode and amount. Percentage discounts are
// capped at 100; amounts are never negative.
func (d *Draft) SetDiscount(mode string, amount decimal.Decimal) error {
	if mode != models.DiscountFixedAmount && mode != models.DiscountPercentage {
		return &InvalidDiscountError{Mode: mode, Amount: amount}
	}
	if amount.IsNegative() {
		return &InvalidDiscountError{Mode: mode, Amount: amount}
	}
	if mode == models.DiscountPercentage && amount.GreaterThan(oneHundred) {
		return &InvalidDiscountError{Mode: mode, Amount: amount}
	}
	d.discountType = mode
	d.discount = amount
	d.recompute()
	return nil
}

// recompute derives subtotal and final amount from the current lines and
// discount. The final amount is intentionally not clamped at zero.
func (d *Draft) recompute() {
	sum := decimal.Zero
	for _, line := range d.products {
		sum = sum.Add(line.Total)
	}
	for _, line := range d.services {
		sum = sum.Add(line.Price)
	}
	d.totalAmount = round2(sum)
	d.finalAmount = round2(d.totalAmount.Sub(d.discountAmount()))
}

func (d *Draft) discountAmount() decimal.Decimal {
	if d.discountType == models.DiscountPercentage {
		return round2(d.totalAmount.Mul(d.discount).Div(oneHundred))
	}
	return d.discount
}

// Totals returns the derived amounts of the draft.
func (d *Draft) Totals() Totals {
	return Totals{
		Subtotal:       d.totalAmount,
		DiscountAmount: d.discountAmount(),
		FinalAmount:    d.finalAmount,
	}
}

// Empty reports whether the draft has no line items at all.
func (d *Draft) Empty() bool {
	return len(d.products) == 0 && len(d.services) == 0
}

// CustomerID returns the snapshotted customer reference, empty if unset.
func (d *Draft) CustomerID() string {
	return d.customerID
}

// Products returns a copy of the product lines.
func (d *Draft) Products() []models.InvoiceProduct {
	out := make([]models.InvoiceProduct, len(d.products))
	copy(out, d.products)
	return out
}

// Services returns a copy of the service lines.
func (d *Draft) Services() []models.InvoiceService {
	out := make([]models.InvoiceService, len(d.services))
	copy(out, d.services)
	return out
}

// Invoice assembles the persisted record from the draft's current state.
// ID, invoice number (when generated) and CreatedAt are filled in by the
// commit coordinator.
func (d *Draft) Invoice() models.Invoice {
	return models.Invoice{
		InvoiceNumber: d.invoiceNumber,
		CustomerID:    d.customerID,
		CustomerName:  d.customerName,
		CarType:       d.carType,
		CarNumber:     d.carNumber,
		Phone:         d.phone,
		InvoiceDate:   d.invoiceDate,
		Products:      d.Products(),
		Services:      d.Services(),
		Discount:      d.discount,
		DiscountType:  d.discountType,
		TotalAmount:   d.totalAmount,
		FinalAmount:   d.finalAmount,
		PaymentMethod: d.paymentMethod,
	}
}
