package service

import (
	"context"
	"errors"
	"testing"

	"invoice-service/internal/billing"
	"invoice-service/internal/models"
	"invoice-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReversalCoordinator(f *fakeStore, ev *fakeEvents, mode StockWriteMode) *ReversalCoordinator {
	return NewReversalCoordinator(f, f, f, ev, mode)
}

func TestCommitThenReverseRestoresStock(t *testing.T) {
	f := newFakeStore(brakePad(5))
	ev := &fakeEvents{}
	commits := newCommitCoordinator(f, ev, StockWriteConditional)
	reversals := newReversalCoordinator(f, ev, StockWriteConditional)

	inv, err := commits.Commit(context.Background(), draftWithBrakePad(t, 2))
	require.NoError(t, err)
	require.Equal(t, 3, f.products["p1"].Quantity)

	require.NoError(t, reversals.Reverse(context.Background(), inv.ID))

	assert.Equal(t, 5, f.products["p1"].Quantity, "round-trip must restore the pre-commit quantity")
	assert.Empty(t, f.invoices, "invoice record must be gone")
	require.Len(t, ev.reversed, 1)
	assert.Equal(t, inv.ID, ev.reversed[0].InvoiceID)

	// A second reversal must fail at the not-found check, not restore again.
	err = reversals.Reverse(context.Background(), inv.ID)
	var notFound *billing.InvoiceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, inv.ID, notFound.ID)
	assert.Equal(t, 5, f.products["p1"].Quantity)
}

func TestReverseUnknownInvoice(t *testing.T) {
	f := newFakeStore()
	r := newReversalCoordinator(f, &fakeEvents{}, StockWriteConditional)

	err := r.Reverse(context.Background(), "nope")
	var notFound *billing.InvoiceNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestReverseUsesRecordedQuantities(t *testing.T) {
	// The product's quantity moved for unrelated reasons (a shipment
	// receipt) after commit; reversal must add back the invoice's own
	// line quantity, not recompute from history.
	f := newFakeStore(models.Product{ID: "p1", Name: "Brake Pad", Quantity: 50})
	f.invoices["inv1"] = models.Invoice{
		ID:            "inv1",
		InvoiceNumber: "INV-20260801-001",
		Products: models.InvoiceProducts{
			{ProductID: "p1", ProductName: "Brake Pad", Quantity: 2},
		},
	}
	r := newReversalCoordinator(f, &fakeEvents{}, StockWriteConditional)

	require.NoError(t, r.Reverse(context.Background(), "inv1"))
	assert.Equal(t, 52, f.products["p1"].Quantity)
}

func TestReverseSkipsVanishedProducts(t *testing.T) {
	f := newFakeStore(models.Product{ID: "p2", Name: "Oil Filter", Quantity: 1})
	f.invoices["inv1"] = models.Invoice{
		ID: "inv1",
		Products: models.InvoiceProducts{
			{ProductID: "gone", Quantity: 3},
			{ProductID: "p2", Quantity: 1},
		},
	}
	r := newReversalCoordinator(f, &fakeEvents{}, StockWriteConditional)

	require.NoError(t, r.Reverse(context.Background(), "inv1"))
	assert.Equal(t, 2, f.products["p2"].Quantity)
	assert.Empty(t, f.invoices)
}

func TestReverseServiceOnlyInvoice(t *testing.T) {
	f := newFakeStore()
	f.invoices["inv1"] = models.Invoice{
		ID:       "inv1",
		Services: models.InvoiceServices{{ServiceID: "s1", ServiceName: "Inspection"}},
	}
	r := newReversalCoordinator(f, &fakeEvents{}, StockWriteConditional)

	require.NoError(t, r.Reverse(context.Background(), "inv1"))
	assert.Empty(t, f.invoices)
}

func TestReverseAtomicityOnBatchFailure(t *testing.T) {
	f := newFakeStore(models.Product{ID: "p1", Quantity: 3})
	f.invoices["inv1"] = models.Invoice{
		ID:       "inv1",
		Products: models.InvoiceProducts{{ProductID: "p1", Quantity: 2}},
	}
	f.applyErr = errors.New("connection reset")
	ev := &fakeEvents{}
	r := newReversalCoordinator(f, ev, StockWriteConditional)

	err := r.Reverse(context.Background(), "inv1")

	var revErr *billing.ReversalFailedError
	require.ErrorAs(t, err, &revErr)
	assert.Equal(t, 3, f.products["p1"].Quantity, "no stock change on failed batch")
	assert.Contains(t, f.invoices, "inv1", "invoice must survive a failed batch")
	assert.Empty(t, ev.reversed)
}

func TestConcurrentDoubleReverseDoesNotDoubleRestore(t *testing.T) {
	// The invoice read succeeds, but the record is deleted before the
	// batch applies. The guarded delete rolls the whole batch back.
	f := newFakeStore(models.Product{ID: "p1", Quantity: 3})
	inv := models.Invoice{
		ID:       "inv1",
		Products: models.InvoiceProducts{{ProductID: "p1", Quantity: 2}},
	}
	r := NewReversalCoordinator(
		invoiceReaderFunc(func(context.Context, string) (*models.Invoice, error) {
			return &inv, nil
		}),
		f, f, &fakeEvents{}, StockWriteConditional)

	err := r.Reverse(context.Background(), "inv1")
	var notFound *billing.InvoiceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 3, f.products["p1"].Quantity, "stock must not be restored twice")
}

func TestReverseConditionalGuardConflict(t *testing.T) {
	f := newFakeStore(models.Product{ID: "p1", Quantity: 3})
	f.invoices["inv1"] = models.Invoice{
		ID:       "inv1",
		Products: models.InvoiceProducts{{ProductID: "p1", Quantity: 2}},
	}
	// A commit slips in between the reversal's read and its batch.
	r := NewReversalCoordinator(f,
		productReaderFunc(func(context.Context, []string) ([]models.Product, error) {
			return []models.Product{{ID: "p1", Quantity: 2}}, nil
		}),
		f, &fakeEvents{}, StockWriteConditional)

	err := r.Reverse(context.Background(), "inv1")
	var revErr *billing.ReversalFailedError
	require.ErrorAs(t, err, &revErr)
	assert.ErrorIs(t, err, store.ErrStockConflict)
	assert.Equal(t, 3, f.products["p1"].Quantity)
	assert.Contains(t, f.invoices, "inv1")
}

type invoiceReaderFunc func(ctx context.Context, id string) (*models.Invoice, error)

func (f invoiceReaderFunc) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	return f(ctx, id)
}
