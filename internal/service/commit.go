package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"invoice-service/internal/billing"
	"invoice-service/internal/models"
	"invoice-service/internal/store"
	"invoice-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockWriteMode selects how product quantity updates are guarded.
type StockWriteMode string

const (
	// StockWriteBatch applies unconditional overwrites: all-or-nothing,
	// but two concurrent commits can both pass validation and both apply.
	StockWriteBatch StockWriteMode = "batch"
	// StockWriteConditional guards every product update on the quantity
	// the commit was validated against; an interleaving commit fails the
	// whole batch instead of overselling.
	StockWriteConditional StockWriteMode = "conditional"
)

// ParseStockWriteMode maps a config string to a mode, defaulting to
// conditional for anything unrecognized.
func ParseStockWriteMode(s string) StockWriteMode {
	if s == string(StockWriteBatch) {
		return StockWriteBatch
	}
	return StockWriteConditional
}

// ProductReader is the catalog read path the coordinators re-validate
// against.
type ProductReader interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// BatchCommitter applies an ordered write set as a single all-or-nothing
// unit.
type BatchCommitter interface {
	ApplyBatch(ctx context.Context, writes []store.Write) error
}

// InvoiceEvents publishes invoice lifecycle events after successful
// batches.
type InvoiceEvents interface {
	PublishInvoiceCommitted(ctx context.Context, event *models.InvoiceCommittedEvent) error
	PublishInvoiceReversed(ctx context.Context, event *models.InvoiceReversedEvent) error
}

// CommitCoordinator turns a validated draft into a persisted invoice plus
// the corresponding stock decrements, as one atomic write set.
type CommitCoordinator struct {
	products  ProductReader
	committer BatchCommitter
	events    InvoiceEvents
	mode      StockWriteMode
	logger    *zap.Logger

	now     func() time.Time
	randInt func(n int) int
}

// NewCommitCoordinator creates a new commit coordinator
func NewCommitCoordinator(
	products ProductReader,
	committer BatchCommitter,
	events InvoiceEvents,
	mode StockWriteMode,
) *CommitCoordinator {
	return &CommitCoordinator{
		products:  products,
		committer: committer,
		events:    events,
		mode:      mode,
		logger:    util.GetLogger(),
		now:       time.Now,
		randInt:   rand.Intn,
	}
}

// nextInvoiceNumber generates INV-YYYYMMDD-NNN with a random 3-digit
// suffix. Uniqueness is enforced by the store's unique index, not here; a
// collision fails the commit.
func (c *CommitCoordinator) nextInvoiceNumber() string {
	return fmt.Sprintf("INV-%s-%03d", c.now().Format("20060102"), c.randInt(1000))
}

// Commit validates the draft, re-checks every product line against the
// current catalog state, and applies the invoice insert together with all
// stock decrements atomically. On any validation failure nothing is
// written; on a storage failure the batch has no effect and the error is
// wrapped in CommitFailedError.
func (c *CommitCoordinator) Commit(ctx context.Context, draft *billing.Draft) (*models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "CommitCoordinator.Commit")
	defer span.End()

	if draft.Empty() {
		util.InvoicesCommitFailedTotal.WithLabelValues("empty_invoice").Inc()
		return nil, billing.ErrEmptyInvoice
	}
	if draft.CustomerID() == "" {
		util.InvoicesCommitFailedTotal.WithLabelValues("missing_customer").Inc()
		return nil, billing.ErrMissingCustomer
	}

	lines := draft.Products()

	start := time.Now()
	ledger, err := c.currentLedger(ctx, lines)
	if err != nil {
		util.InvoicesCommitFailedTotal.WithLabelValues("catalog_read").Inc()
		return nil, &billing.CommitFailedError{Err: err}
	}
	for _, line := range lines {
		if ledger.WouldOversell(line.ProductID, line.Quantity) {
			util.InvoicesCommitFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, &billing.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: ledger.Available(line.ProductID),
			}
		}
	}
	util.StockValidationLatency.Observe(time.Since(start).Seconds())

	inv := draft.Invoice()
	inv.ID = uuid.New().String()
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = c.nextInvoiceNumber()
	}
	inv.CreatedAt = c.now().UTC()

	writes := make([]store.Write, 0, len(lines)+1)
	writes = append(writes, store.Write{
		Kind:     store.RecordInvoice,
		Ref:      inv.ID,
		Mutation: store.MutationInsert,
		Invoice:  &inv,
	})
	for _, line := range lines {
		current := ledger.Available(line.ProductID)
		newQty := current - line.Quantity
		if newQty < 0 {
			newQty = 0
		}
		w := store.Write{
			Kind:     store.RecordProduct,
			Ref:      line.ProductID,
			Mutation: store.MutationUpdate,
			Quantity: newQty,
		}
		if c.mode == StockWriteConditional {
			guard := current
			w.GuardQuantity = &guard
		}
		writes = append(writes, w)
	}

	applyStart := time.Now()
	if err := c.committer.ApplyBatch(ctx, writes); err != nil {
		util.InvoicesCommitFailedTotal.WithLabelValues("batch_failed").Inc()
		return nil, &billing.CommitFailedError{Err: err}
	}
	util.BatchApplyLatency.Observe(time.Since(applyStart).Seconds())

	util.InvoicesCommittedTotal.Inc()
	c.logger.Info("Invoice committed",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("final_amount", inv.FinalAmount.String()),
		zap.Int("product_lines", len(lines)),
		zap.Int("service_lines", len(inv.Services)))

	c.publishCommitted(ctx, &inv, lines)
	return &inv, nil
}

// currentLedger reads fresh quantities for the drafted products straight
// from the store, bypassing any cache.
func (c *CommitCoordinator) currentLedger(ctx context.Context, lines []models.InvoiceProduct) (*billing.StockLedger, error) {
	if len(lines) == 0 {
		return billing.NewStockLedger(nil), nil
	}
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := c.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read current stock: %w", err)
	}
	return billing.NewStockLedger(products), nil
}

func (c *CommitCoordinator) publishCommitted(ctx context.Context, inv *models.Invoice, lines []models.InvoiceProduct) {
	if c.events == nil {
		return
	}

	deltas := make([]models.StockDelta, 0, len(lines))
	for _, line := range lines {
		deltas = append(deltas, models.StockDelta{ProductID: line.ProductID, Quantity: -line.Quantity})
	}

	event := &models.InvoiceCommittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInvoiceCommitted,
			Timestamp: c.now(),
		},
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		FinalAmount:   inv.FinalAmount.String(),
		Deltas:        deltas,
	}

	if err := c.events.PublishInvoiceCommitted(ctx, event); err != nil {
		c.logger.Error("Failed to publish InvoiceCommitted event",
			zap.String("invoice_id", inv.ID),
			zap.Error(err))
	}
}
