package billing

import "invoice-service/internal/models"

// StockLedger is a read-only view of product quantities used for
// validation. It never mutates stock: all quantity writes go through the
// coordinators' atomic write sets, so this view cannot silently diverge
// from what validation saw.
//
// Freshness is not guaranteed; the ledger holds whatever quantities it was
// built from.
type StockLedger struct {
	products map[string]models.Product
}

// NewStockLedger builds a ledger from a catalog snapshot.
func NewStockLedger(products []models.Product) *StockLedger {
	m := make(map[string]models.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &StockLedger{products: m}
}

// Available returns the snapshot quantity for a product. Unknown products
// report zero.
func (l *StockLedger) Available(productID string) int {
	return l.products[productID].Quantity
}

// WouldOversell reports whether the requested quantity exceeds the
// snapshot quantity.
func (l *StockLedger) WouldOversell(productID string, requested int) bool {
	return requested > l.Available(productID)
}

// Product looks up the full snapshot record for a product.
func (l *StockLedger) Product(productID string) (models.Product, bool) {
	p, ok := l.products[productID]
	return p, ok
}

// Len returns the number of products in the snapshot.
func (l *StockLedger) Len() int {
	return len(l.products)
}
