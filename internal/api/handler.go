package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"invoice-service/internal/billing"
	"invoice-service/internal/models"
	"invoice-service/internal/service"
	"invoice-service/internal/store"
	"invoice-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Catalog is the read path the handlers build drafts from.
type Catalog interface {
	StockSnapshot(ctx context.Context) (*billing.StockLedger, error)
	Products(ctx context.Context) ([]models.Product, error)
	Services(ctx context.Context) ([]models.Service, error)
	ServicesByIDs(ctx context.Context, ids []string) (map[string]models.Service, error)
	Customer(ctx context.Context, id string) (*models.Customer, error)
}

// InvoiceStore is the invoice read path for the query endpoints.
type InvoiceStore interface {
	GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error)
	GetInvoices(ctx context.Context) ([]models.Invoice, error)
}

// Handler contains HTTP handlers
type Handler struct {
	catalog   Catalog
	commits   *service.CommitCoordinator
	reversals *service.ReversalCoordinator
	invoices  InvoiceStore
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog Catalog,
	commits *service.CommitCoordinator,
	reversals *service.ReversalCoordinator,
	invoices InvoiceStore,
) *Handler {
	return &Handler{
		catalog:   catalog,
		commits:   commits,
		reversals: reversals,
		invoices:  invoices,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/invoices", h.createInvoice)
		v1.GET("/invoices", h.listInvoices)
		v1.GET("/invoices/:id", h.getInvoice)
		v1.DELETE("/invoices/:id", h.deleteInvoice)
		v1.GET("/products", h.listProducts)
		v1.GET("/services", h.listServices)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// CreateInvoiceRequest is the payload for committing an invoice.
type CreateInvoiceRequest struct {
	CustomerID    string               `json:"customer_id" binding:"required"`
	InvoiceNumber string               `json:"invoice_number"`
	InvoiceDate   string               `json:"invoice_date"`
	PaymentMethod string               `json:"payment_method" binding:"omitempty,oneof=cash visa"`
	Discount      decimal.Decimal      `json:"discount"`
	DiscountType  string               `json:"discount_type" binding:"omitempty,oneof=fixedAmount percentage"`
	Products      []ProductLineRequest `json:"products" binding:"dive"`
	Services      []ServiceLineRequest `json:"services" binding:"dive"`
}

// ProductLineRequest is one product line in a create request. Price, when
// set, overrides the catalog unit price.
type ProductLineRequest struct {
	ProductID string           `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,min=1"`
	Price     *decimal.Decimal `json:"price"`
}

// ServiceLineRequest is one service line in a create request. Price, when
// set, overrides the catalog price.
type ServiceLineRequest struct {
	ServiceID string           `json:"service_id" binding:"required"`
	Price     *decimal.Decimal `json:"price"`
}

// createInvoice builds a draft from the request against the current stock
// snapshot and commits it.
func (h *Handler) createInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	customer, err := h.catalog.Customer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found", "customer_id": req.CustomerID})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load customer", "details": err.Error()})
		return
	}

	ledger, err := h.catalog.StockSnapshot(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load stock snapshot", "details": err.Error()})
		return
	}

	draft := billing.NewDraft()
	draft.SetCustomer(*customer)
	draft.SetInvoiceNumber(req.InvoiceNumber)
	if req.InvoiceDate != "" {
		draft.SetInvoiceDate(req.InvoiceDate)
	}
	if req.PaymentMethod != "" {
		draft.SetPaymentMethod(req.PaymentMethod)
	}

	for i, line := range req.Products {
		product, ok := ledger.Product(line.ProductID)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown product", "product_id": line.ProductID})
			return
		}
		if err := draft.AddProductLine(product, line.Quantity); err != nil {
			h.writeBillingError(c, err)
			return
		}
		if line.Price != nil {
			if err := draft.UpdateProductPrice(i, *line.Price); err != nil {
				h.writeBillingError(c, err)
				return
			}
		}
	}

	if len(req.Services) > 0 {
		ids := make([]string, len(req.Services))
		for i, line := range req.Services {
			ids[i] = line.ServiceID
		}
		services, err := h.catalog.ServicesByIDs(ctx, ids)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load services", "details": err.Error()})
			return
		}
		for _, line := range req.Services {
			svc, ok := services[line.ServiceID]
			if !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown service", "service_id": line.ServiceID})
				return
			}
			price := svc.Price
			if line.Price != nil {
				price = *line.Price
			}
			if err := draft.AddServiceLine(svc, price); err != nil {
				h.writeBillingError(c, err)
				return
			}
		}
	}

	if req.DiscountType != "" || !req.Discount.IsZero() {
		mode := req.DiscountType
		if mode == "" {
			mode = models.DiscountFixedAmount
		}
		if err := draft.SetDiscount(mode, req.Discount); err != nil {
			h.writeBillingError(c, err)
			return
		}
	}

	invoice, err := h.commits.Commit(ctx, draft)
	if err != nil {
		h.writeBillingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invoice)
}

// getInvoice handles get invoice by ID
func (h *Handler) getInvoice(c *gin.Context) {
	invoice, err := h.invoices.GetInvoiceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load invoice", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// listInvoices returns all invoices newest first, or a single invoice
// when filtered by number.
func (h *Handler) listInvoices(c *gin.Context) {
	ctx := c.Request.Context()

	if number := c.Query("number"); number != "" {
		invoice, err := h.invoices.GetInvoiceByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found", "number": number})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load invoice", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoices": []models.Invoice{*invoice}})
		return
	}

	invoices, err := h.invoices.GetInvoices(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to list invoices", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// deleteInvoice reverses an invoice: stock is restored and the record
// removed, atomically.
func (h *Handler) deleteInvoice(c *gin.Context) {
	if err := h.reversals.Reverse(c.Request.Context(), c.Param("id")); err != nil {
		h.writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// listProducts handles product catalog listing
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.Products(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to list products", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// listServices handles service catalog listing
func (h *Handler) listServices(c *gin.Context) {
	services, err := h.catalog.Services(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to list services", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

// writeBillingError maps engine errors onto HTTP statuses with enough
// structure for the caller to render a message.
func (h *Handler) writeBillingError(c *gin.Context, err error) {
	var dup *billing.DuplicateLineError
	var stock *billing.InsufficientStockError
	var notFound *billing.InvoiceNotFoundError
	var commitFailed *billing.CommitFailedError
	var reversalFailed *billing.ReversalFailedError

	switch {
	case errors.Is(err, billing.ErrEmptyInvoice),
		errors.Is(err, billing.ErrMissingCustomer),
		errors.Is(err, billing.ErrLineIndex):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"product_id": stock.ProductID,
			"requested":  stock.Requested,
			"available":  stock.Available,
		})

	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "ref": dup.Ref})

	case isValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &commitFailed), errors.As(err, &reversalFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func isValidationError(err error) bool {
	var qty *billing.InvalidQuantityError
	var price *billing.InvalidPriceError
	var discount *billing.InvalidDiscountError
	return errors.As(err, &qty) || errors.As(err, &price) || errors.As(err, &discount)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
