package store

import (
	"context"
	"errors"
	"fmt"

	"invoice-service/internal/models"
)

// ErrStockConflict is returned when a guarded product update finds the
// quantity changed since the caller validated it. The whole batch is
// rolled back.
var ErrStockConflict = errors.New("stock changed since validation")

type RecordKind string

const (
	RecordInvoice RecordKind = "invoice"
	RecordProduct RecordKind = "product"
)

type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Write is one mutation in an atomic write set. The payload fields used
// depend on Kind and Mutation.
type Write struct {
	Kind     RecordKind
	Ref      string
	Mutation MutationKind

	// Invoice is the record payload for invoice inserts.
	Invoice *models.Invoice
	// Quantity is the new on-hand quantity for product updates.
	Quantity int
	// GuardQuantity, when non-nil, requires the product's current quantity
	// to still equal this value. A mismatch fails the whole batch with
	// ErrStockConflict. When nil, the update overwrites unconditionally,
	// matching plain batch semantics.
	GuardQuantity *int
}

// ApplyBatch applies an ordered write set as a single transaction: either
// every write takes effect or none do. It provides no isolation from
// concurrent batches touching the same records beyond what the guards ask
// for.
func (s *Store) ApplyBatch(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		switch {
		case w.Kind == RecordInvoice && w.Mutation == MutationInsert:
			if w.Invoice == nil {
				return fmt.Errorf("invoice insert %s has no payload", w.Ref)
			}
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO invoices (
					id, invoice_number, customer_id, customer_name, car_type,
					car_number, phone, invoice_date, products, services,
					discount, discount_type, total_amount, final_amount,
					payment_method, created_at
				) VALUES (
					:id, :invoice_number, :customer_id, :customer_name, :car_type,
					:car_number, :phone, :invoice_date, :products, :services,
					:discount, :discount_type, :total_amount, :final_amount,
					:payment_method, :created_at
				)`, w.Invoice)
			if err != nil {
				return fmt.Errorf("failed to insert invoice %s: %w", w.Ref, err)
			}

		case w.Kind == RecordInvoice && w.Mutation == MutationDelete:
			res, err := tx.ExecContext(ctx, "DELETE FROM invoices WHERE id = $1", w.Ref)
			if err != nil {
				return fmt.Errorf("failed to delete invoice %s: %w", w.Ref, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("invoice %s: %w", w.Ref, ErrNotFound)
			}

		case w.Kind == RecordProduct && w.Mutation == MutationUpdate:
			if w.GuardQuantity != nil {
				res, err := tx.ExecContext(ctx,
					"UPDATE products SET quantity = $1 WHERE id = $2 AND quantity = $3",
					w.Quantity, w.Ref, *w.GuardQuantity)
				if err != nil {
					return fmt.Errorf("failed to update product %s: %w", w.Ref, err)
				}
				if n, _ := res.RowsAffected(); n == 0 {
					return fmt.Errorf("product %s: %w", w.Ref, ErrStockConflict)
				}
			} else {
				res, err := tx.ExecContext(ctx,
					"UPDATE products SET quantity = $1 WHERE id = $2",
					w.Quantity, w.Ref)
				if err != nil {
					return fmt.Errorf("failed to update product %s: %w", w.Ref, err)
				}
				if n, _ := res.RowsAffected(); n == 0 {
					return fmt.Errorf("product %s: %w", w.Ref, ErrNotFound)
				}
			}

		default:
			return fmt.Errorf("unsupported write: kind=%s mutation=%s ref=%s", w.Kind, w.Mutation, w.Ref)
		}
	}

	return tx.Commit()
}
