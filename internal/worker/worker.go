package worker

import (
	"context"
	"log"

	"invoice-service/internal/broker"
	"invoice-service/internal/models"
)

// LedgerRefresher re-reads product quantities from storage and updates
// the cached stock snapshot.
type LedgerRefresher interface {
	RefreshStock(ctx context.Context, productIDs []string) error
}

// StockWorker consumes invoice lifecycle events and refreshes the cached
// stock snapshot for the products each invoice touched, so validation
// sees quantities close to what the last batch wrote.
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	refresher    LedgerRefresher
}

// NewStockWorker creates a new stock worker
func NewStockWorker(consumer *broker.Consumer, refresher LedgerRefresher) *StockWorker {
	w := &StockWorker{
		consumer:  consumer,
		refresher: refresher,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnInvoiceCommitted(func(ctx context.Context, event *models.InvoiceCommittedEvent) error {
		return w.refresh(ctx, event.Deltas)
	})
	eventHandler.OnInvoiceReversed(func(ctx context.Context, event *models.InvoiceReversedEvent) error {
		return w.refresh(ctx, event.Deltas)
	})
	w.eventHandler = eventHandler

	return w
}

func (w *StockWorker) refresh(ctx context.Context, deltas []models.StockDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.ProductID)
	}
	return w.refresher.RefreshStock(ctx, ids)
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	log.Println("Starting stock worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	log.Println("Stopping stock worker...")
	return w.consumer.Close()
}
