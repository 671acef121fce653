package service

import (
	"context"
	"fmt"

	"invoice-service/internal/models"
	"invoice-service/internal/store"
)

// fakeStore implements ProductReader, InvoiceReader and BatchCommitter
// over in-memory maps, applying write sets all-or-nothing the way the
// real store does.
type fakeStore struct {
	products map[string]models.Product
	invoices map[string]models.Invoice

	applyErr error
	batches  [][]store.Write
}

func newFakeStore(products ...models.Product) *fakeStore {
	f := &fakeStore{
		products: make(map[string]models.Product),
		invoices: make(map[string]models.Invoice),
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetInvoiceByID(_ context.Context, id string) (*models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
	}
	return &inv, nil
}

func (f *fakeStore) ApplyBatch(_ context.Context, writes []store.Write) error {
	f.batches = append(f.batches, writes)
	if f.applyErr != nil {
		return f.applyErr
	}

	// Stage onto copies so a failing write leaves nothing applied.
	products := make(map[string]models.Product, len(f.products))
	for k, v := range f.products {
		products[k] = v
	}
	invoices := make(map[string]models.Invoice, len(f.invoices))
	for k, v := range f.invoices {
		invoices[k] = v
	}

	for _, w := range writes {
		switch {
		case w.Kind == store.RecordInvoice && w.Mutation == store.MutationInsert:
			invoices[w.Ref] = *w.Invoice
		case w.Kind == store.RecordInvoice && w.Mutation == store.MutationDelete:
			if _, ok := invoices[w.Ref]; !ok {
				return fmt.Errorf("invoice %s: %w", w.Ref, store.ErrNotFound)
			}
			delete(invoices, w.Ref)
		case w.Kind == store.RecordProduct && w.Mutation == store.MutationUpdate:
			p, ok := products[w.Ref]
			if !ok {
				return fmt.Errorf("product %s: %w", w.Ref, store.ErrNotFound)
			}
			if w.GuardQuantity != nil && p.Quantity != *w.GuardQuantity {
				return fmt.Errorf("product %s: %w", w.Ref, store.ErrStockConflict)
			}
			p.Quantity = w.Quantity
			products[w.Ref] = p
		default:
			return fmt.Errorf("unsupported write: kind=%s mutation=%s", w.Kind, w.Mutation)
		}
	}

	f.products = products
	f.invoices = invoices
	return nil
}

type fakeEvents struct {
	committed []*models.InvoiceCommittedEvent
	reversed  []*models.InvoiceReversedEvent
	err       error
}

func (f *fakeEvents) PublishInvoiceCommitted(_ context.Context, event *models.InvoiceCommittedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.committed = append(f.committed, event)
	return nil
}

func (f *fakeEvents) PublishInvoiceReversed(_ context.Context, event *models.InvoiceReversedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.reversed = append(f.reversed, event)
	return nil
}
