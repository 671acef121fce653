package store

import (
	"context"
	"database/sql"
	"fmt"

	"invoice-service/internal/models"
)

// GetInvoiceByID retrieves an invoice by ID
func (s *Store) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.GetContext(ctx, &invoice, "SELECT * FROM invoices WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoiceByNumber retrieves an invoice by its invoice number
func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.GetContext(ctx, &invoice, "SELECT * FROM invoices WHERE invoice_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoices retrieves all invoices, newest first
func (s *Store) GetInvoices(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.SelectContext(ctx, &invoices, "SELECT * FROM invoices ORDER BY created_at DESC")
	return invoices, err
}
