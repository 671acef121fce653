package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-service/internal/billing"
	"invoice-service/internal/models"
	"invoice-service/internal/store"
	"invoice-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceReader loads persisted invoices for reversal.
type InvoiceReader interface {
	GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error)
}

// ReversalCoordinator is the exact inverse of commit: it restores the
// quantities recorded on the invoice's own lines and deletes the invoice
// record, as one atomic write set.
type ReversalCoordinator struct {
	invoices  InvoiceReader
	products  ProductReader
	committer BatchCommitter
	events    InvoiceEvents
	mode      StockWriteMode
	logger    *zap.Logger

	now func() time.Time
}

// NewReversalCoordinator creates a new reversal coordinator
func NewReversalCoordinator(
	invoices InvoiceReader,
	products ProductReader,
	committer BatchCommitter,
	events InvoiceEvents,
	mode StockWriteMode,
) *ReversalCoordinator {
	return &ReversalCoordinator{
		invoices:  invoices,
		products:  products,
		committer: committer,
		events:    events,
		mode:      mode,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Reverse restores stock for every product line recorded on the invoice
// and deletes the invoice record atomically. Restoration uses the line
// quantities, not current product state, so it stays correct even if a
// product's quantity moved for unrelated reasons since commit. A second
// reversal of the same invoice fails with InvoiceNotFoundError instead of
// double-restoring; the batch's guarded delete protects the concurrent
// case as well.
func (r *ReversalCoordinator) Reverse(ctx context.Context, invoiceID string) error {
	ctx, span := util.StartSpan(ctx, "ReversalCoordinator.Reverse")
	defer span.End()

	inv, err := r.invoices.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.InvoicesReversalFailedTotal.WithLabelValues("not_found").Inc()
			return &billing.InvoiceNotFoundError{ID: invoiceID}
		}
		util.InvoicesReversalFailedTotal.WithLabelValues("invoice_read").Inc()
		return &billing.ReversalFailedError{Err: err}
	}

	writes, deltas, err := r.restoreWrites(ctx, inv)
	if err != nil {
		util.InvoicesReversalFailedTotal.WithLabelValues("catalog_read").Inc()
		return &billing.ReversalFailedError{Err: err}
	}
	writes = append(writes, store.Write{
		Kind:     store.RecordInvoice,
		Ref:      inv.ID,
		Mutation: store.MutationDelete,
	})

	start := time.Now()
	if err := r.committer.ApplyBatch(ctx, writes); err != nil {
		// A concurrent reversal already deleted the record: the delete
		// write matched nothing and the batch rolled back, so stock was
		// not restored twice.
		if errors.Is(err, store.ErrNotFound) {
			util.InvoicesReversalFailedTotal.WithLabelValues("not_found").Inc()
			return &billing.InvoiceNotFoundError{ID: invoiceID}
		}
		util.InvoicesReversalFailedTotal.WithLabelValues("batch_failed").Inc()
		return &billing.ReversalFailedError{Err: err}
	}
	util.BatchApplyLatency.Observe(time.Since(start).Seconds())

	util.InvoicesReversedTotal.Inc()
	r.logger.Info("Invoice reversed",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("restored_lines", len(deltas)))

	r.publishReversed(ctx, inv, deltas)
	return nil
}

// restoreWrites builds one increment write per product line, based on the
// product's current quantity plus the quantity the invoice recorded.
// Products that have vanished from the catalog are skipped.
func (r *ReversalCoordinator) restoreWrites(ctx context.Context, inv *models.Invoice) ([]store.Write, []models.StockDelta, error) {
	if len(inv.Products) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(inv.Products))
	for _, line := range inv.Products {
		if line.ProductID != "" {
			ids = append(ids, line.ProductID)
		}
	}

	products, err := r.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read current stock: %w", err)
	}
	current := make(map[string]int, len(products))
	for _, p := range products {
		current[p.ID] = p.Quantity
	}

	var writes []store.Write
	var deltas []models.StockDelta
	for _, line := range inv.Products {
		qty, ok := current[line.ProductID]
		if !ok {
			continue
		}
		w := store.Write{
			Kind:     store.RecordProduct,
			Ref:      line.ProductID,
			Mutation: store.MutationUpdate,
			Quantity: qty + line.Quantity,
		}
		if r.mode == StockWriteConditional {
			guard := qty
			w.GuardQuantity = &guard
		}
		writes = append(writes, w)
		deltas = append(deltas, models.StockDelta{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	return writes, deltas, nil
}

func (r *ReversalCoordinator) publishReversed(ctx context.Context, inv *models.Invoice, deltas []models.StockDelta) {
	if r.events == nil {
		return
	}

	event := &models.InvoiceReversedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInvoiceReversed,
			Timestamp: r.now(),
		},
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Deltas:        deltas,
	}

	if err := r.events.PublishInvoiceReversed(ctx, event); err != nil {
		r.logger.Error("Failed to publish InvoiceReversed event",
			zap.String("invoice_id", inv.ID),
			zap.Error(err))
	}
}
