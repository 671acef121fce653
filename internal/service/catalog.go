package service

import (
	"context"
	"fmt"

	"invoice-service/internal/billing"
	"invoice-service/internal/models"
	"invoice-service/internal/redisclient"
	"invoice-service/internal/store"
	"invoice-service/internal/util"

	"go.uber.org/zap"
)

// CatalogService is the read path over products, services and customers.
// It also maintains the Redis stock snapshot cache that speeds up draft
// validation. It never writes product quantities: all stock mutation goes
// through the coordinators' write sets.
type CatalogService struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, redis *redisclient.Client) *CatalogService {
	return &CatalogService{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// StockSnapshot builds a stock ledger for draft validation. Product
// records come from the database; quantities are overlaid from the Redis
// cache where present, since the cache is refreshed right after each
// commit or reversal. A cache failure degrades to database quantities.
func (cs *CatalogService) StockSnapshot(ctx context.Context) (*billing.StockLedger, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.StockSnapshot")
	defer span.End()

	products, err := cs.store.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	cached, err := cs.redis.GetQuantities(ctx, ids)
	if err != nil {
		util.StockSnapshotCacheMisses.Inc()
		cs.logger.Warn("Stock cache unavailable, using database quantities", zap.Error(err))
		return billing.NewStockLedger(products), nil
	}

	for i := range products {
		if qty, ok := cached[products[i].ID]; ok {
			products[i].Quantity = qty
		}
	}

	return billing.NewStockLedger(products), nil
}

// SyncStockToRedis pushes every product quantity into the cache.
func (cs *CatalogService) SyncStockToRedis(ctx context.Context) error {
	cs.logger.Info("Starting stock sync to Redis")

	products, err := cs.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	quantities := make(map[string]int, len(products))
	for _, p := range products {
		quantities[p.ID] = p.Quantity
	}

	if err := cs.redis.SetQuantities(ctx, quantities); err != nil {
		return fmt.Errorf("failed to write stock cache: %w", err)
	}

	cs.logger.Info("Stock sync completed", zap.Int("count", len(products)))
	return nil
}

// RefreshStock re-reads the given products from the database and updates
// their cached quantities. Products that no longer exist are evicted.
func (cs *CatalogService) RefreshStock(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	products, err := cs.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("failed to re-read products: %w", err)
	}

	quantities := make(map[string]int, len(products))
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		quantities[p.ID] = p.Quantity
		seen[p.ID] = true
	}

	var gone []string
	for _, id := range productIDs {
		if !seen[id] {
			gone = append(gone, id)
		}
	}

	if err := cs.redis.SetQuantities(ctx, quantities); err != nil {
		return err
	}
	return cs.redis.DeleteQuantities(ctx, gone)
}

// Products lists the product catalog.
func (cs *CatalogService) Products(ctx context.Context) ([]models.Product, error) {
	return cs.store.GetProducts(ctx)
}

// Services lists the service offerings.
func (cs *CatalogService) Services(ctx context.Context) ([]models.Service, error) {
	return cs.store.GetServices(ctx)
}

// ServicesByIDs retrieves service offerings keyed by ID.
func (cs *CatalogService) ServicesByIDs(ctx context.Context, ids []string) (map[string]models.Service, error) {
	services, err := cs.store.GetServicesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Service, len(services))
	for _, s := range services {
		out[s.ID] = s
	}
	return out, nil
}

// Customer retrieves a customer record.
func (cs *CatalogService) Customer(ctx context.Context, id string) (*models.Customer, error) {
	return cs.store.GetCustomerByID(ctx, id)
}
