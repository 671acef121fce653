package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"invoice-service/internal/billing"
	"invoice-service/internal/models"
	"invoice-service/internal/service"
	"invoice-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend implements the catalog, product/invoice read and batch
// commit seams over in-memory maps.
type fakeBackend struct {
	products  map[string]models.Product
	services  map[string]models.Service
	customers map[string]models.Customer
	invoices  map[string]models.Invoice
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products: map[string]models.Product{
			"p1": {ID: "p1", Name: "Brake Pad", Price: decimal.RequireFromString("14.00"), Quantity: 5},
		},
		services: map[string]models.Service{
			"s1": {ID: "s1", Name: "Inspection", Price: decimal.RequireFromString("5.00")},
		},
		customers: map[string]models.Customer{
			"c1": {ID: "c1", CustomerName: "Ahmed", CarNumber: "ABC-123"},
		},
		invoices: map[string]models.Invoice{},
	}
}

func (f *fakeBackend) StockSnapshot(context.Context) (*billing.StockLedger, error) {
	products := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		products = append(products, p)
	}
	return billing.NewStockLedger(products), nil
}

func (f *fakeBackend) Products(context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeBackend) Services(context.Context) ([]models.Service, error) {
	out := make([]models.Service, 0, len(f.services))
	for _, s := range f.services {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeBackend) ServicesByIDs(_ context.Context, ids []string) (map[string]models.Service, error) {
	out := make(map[string]models.Service)
	for _, id := range ids {
		if s, ok := f.services[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeBackend) Customer(_ context.Context, id string) (*models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
	}
	return &c, nil
}

func (f *fakeBackend) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetInvoiceByID(_ context.Context, id string) (*models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
	}
	return &inv, nil
}

func (f *fakeBackend) GetInvoiceByNumber(_ context.Context, number string) (*models.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.InvoiceNumber == number {
			inv := inv
			return &inv, nil
		}
	}
	return nil, fmt.Errorf("invoice %s: %w", number, store.ErrNotFound)
}

func (f *fakeBackend) GetInvoices(_ context.Context) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0, len(f.invoices))
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeBackend) ApplyBatch(_ context.Context, writes []store.Write) error {
	for _, w := range writes {
		switch {
		case w.Kind == store.RecordInvoice && w.Mutation == store.MutationInsert:
			f.invoices[w.Ref] = *w.Invoice
		case w.Kind == store.RecordInvoice && w.Mutation == store.MutationDelete:
			if _, ok := f.invoices[w.Ref]; !ok {
				return fmt.Errorf("invoice %s: %w", w.Ref, store.ErrNotFound)
			}
			delete(f.invoices, w.Ref)
		case w.Kind == store.RecordProduct && w.Mutation == store.MutationUpdate:
			p := f.products[w.Ref]
			p.Quantity = w.Quantity
			f.products[w.Ref] = p
		}
	}
	return nil
}

func newTestRouter(f *fakeBackend) *gin.Engine {
	gin.SetMode(gin.TestMode)

	commits := service.NewCommitCoordinator(f, f, nil, service.StockWriteConditional)
	reversals := service.NewReversalCoordinator(f, f, f, nil, service.StockWriteConditional)
	handler := NewHandler(f, commits, reversals, f)

	router := gin.New()
	handler.SetupRoutes(router)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCreateInvoice(t *testing.T) {
	f := newFakeBackend()
	router := newTestRouter(f)

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id":   "c1",
		"discount":      3.00,
		"discount_type": "fixedAmount",
		"products":      []gin.H{{"product_id": "p1", "quantity": 2}},
		"services":      []gin.H{{"service_id": "s1"}},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var inv models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Regexp(t, `^INV-\d{8}-\d{3}$`, inv.InvoiceNumber)
	assert.True(t, inv.FinalAmount.Equal(decimal.RequireFromString("30.00")))
	assert.Equal(t, "Ahmed", inv.CustomerName)

	assert.Equal(t, 3, f.products["p1"].Quantity)
	assert.Len(t, f.invoices, 1)
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	router := newTestRouter(newFakeBackend())

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id": "missing",
		"products":    []gin.H{{"product_id": "p1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateInvoiceOversell(t *testing.T) {
	f := newFakeBackend()
	router := newTestRouter(f)

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id": "c1",
		"products":    []gin.H{{"product_id": "p1", "quantity": 6}},
	})

	require.Equal(t, http.StatusConflict, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, float64(6), body["requested"])
	assert.Equal(t, float64(5), body["available"])

	assert.Equal(t, 5, f.products["p1"].Quantity, "rejected commit must not touch stock")
	assert.Empty(t, f.invoices)
}

func TestCreateInvoiceDuplicateProductLine(t *testing.T) {
	router := newTestRouter(newFakeBackend())

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id": "c1",
		"products": []gin.H{
			{"product_id": "p1", "quantity": 1},
			{"product_id": "p1", "quantity": 2},
		},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateInvoiceNoLines(t *testing.T) {
	router := newTestRouter(newFakeBackend())

	w := postJSON(t, router, "/api/v1/invoices", gin.H{"customer_id": "c1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateInvoiceInvalidDiscount(t *testing.T) {
	router := newTestRouter(newFakeBackend())

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id":   "c1",
		"discount":      120,
		"discount_type": "percentage",
		"products":      []gin.H{{"product_id": "p1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeleteInvoiceRoundTrip(t *testing.T) {
	f := newFakeBackend()
	router := newTestRouter(f)

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id": "c1",
		"products":    []gin.H{{"product_id": "p1", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var inv models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	require.Equal(t, 3, f.products["p1"].Quantity)

	del := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/"+inv.ID, nil)
	router.ServeHTTP(del, req)

	require.Equal(t, http.StatusOK, del.Code)
	assert.Equal(t, 5, f.products["p1"].Quantity)
	assert.Empty(t, f.invoices)

	// Deleting again is a 404, not a double restore.
	del2 := httptest.NewRecorder()
	router.ServeHTTP(del2, httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/"+inv.ID, nil))
	assert.Equal(t, http.StatusNotFound, del2.Code)
	assert.Equal(t, 5, f.products["p1"].Quantity)
}

func TestGetInvoiceNotFound(t *testing.T) {
	router := newTestRouter(newFakeBackend())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListInvoices(t *testing.T) {
	f := newFakeBackend()
	router := newTestRouter(f)

	w := postJSON(t, router, "/api/v1/invoices", gin.H{
		"customer_id": "c1",
		"products":    []gin.H{{"product_id": "p1", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var inv models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))

	list := httptest.NewRecorder()
	router.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	require.Equal(t, http.StatusOK, list.Code)

	var body struct {
		Invoices []models.Invoice `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &body))
	require.Len(t, body.Invoices, 1)
	assert.Equal(t, inv.ID, body.Invoices[0].ID)

	byNumber := httptest.NewRecorder()
	router.ServeHTTP(byNumber, httptest.NewRequest(http.MethodGet, "/api/v1/invoices?number="+inv.InvoiceNumber, nil))
	require.Equal(t, http.StatusOK, byNumber.Code)

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/v1/invoices?number=INV-19700101-000", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestListProducts(t *testing.T) {
	router := newTestRouter(newFakeBackend())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Brake Pad")
}
