// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// ResultSource tags how a gateway call was satisfied. Callers must branch on
// it: a Pending result is an accepted-for-sync acknowledgement, never a
// confirmed server result.
type ResultSource int

const (
	// SourceConfirmed: the server executed the call and Data is its response.
	SourceConfirmed ResultSource = iota
	// SourceCached: served from the local read cache.
	SourceCached
	// SourcePending: the mutation was queued durably; RequestID identifies it.
	SourcePending
	// SourceUnavailable: offline with no cached copy. Not an error; callers
	// degrade gracefully.
	SourceUnavailable
)

func (s ResultSource) String() string {
	switch s {
	case SourceConfirmed:
		return "confirmed"
	case SourceCached:
		return "cached"
	case SourcePending:
		return "pending"
	case SourceUnavailable:
		return "unavailable-offline"
	default:
		return "unknown"
	}
}

// Result is the tagged return value of every gateway call.
type Result struct {
	Source    ResultSource
	Data      json.RawMessage
	RequestID string // set when Source == SourcePending
}

// Gateway is the single entry point for outbound API calls. Reads are served
// live with cache refresh, or from cache when the server is unreachable.
// Mutations are executed live when possible and queued durably (with shadow
// records) when not.
type Gateway struct {
	store     *Store
	monitor   *Monitor
	transport *Transport
	logger    *slog.Logger

	// CacheTTL bounds the freshness of cached reads.
	CacheTTL time.Duration

	// OnEnqueue, when set, is invoked after a mutation is queued while the
	// monitor still believes we are online (a mid-request network blip), so
	// the replayer can pick it up promptly.
	OnEnqueue func()

	now func() time.Time
}

// NewGateway wires the gateway to its store, monitor and transport.
func NewGateway(store *Store, monitor *Monitor, transport *Transport, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:     store,
		monitor:   monitor,
		transport: transport,
		logger:    logger,
		CacheTTL:  DefaultCacheTTL,
		now:       time.Now,
	}
}

// Get performs a read. Online: live call with cache refresh, falling back to
// cache on network-class failure. Offline: cache or an explicit
// SourceUnavailable result. Server-class failures propagate as errors.
func (g *Gateway) Get(ctx context.Context, path string) (Result, error) {
	if g.monitor.IsOnline() {
		body, err := g.transport.Do(ctx, http.MethodGet, path, nil, nil)
		if err == nil {
			if cacheErr := g.store.SetCache(ctx, path, body, g.CacheTTL); cacheErr != nil {
				g.logger.Warn("failed to refresh read cache", "path", path, "error", cacheErr)
			}
			return Result{Source: SourceConfirmed, Data: body}, nil
		}
		if posapi.IsServerError(err) {
			return Result{}, err
		}
		g.logger.Debug("live read failed, falling back to cache", "path", path, "error", err)
	}
	return g.fromCache(ctx, path)
}

// Mutate routes a mutation. Online: live execution; a network-class failure
// downgrades to enqueue, a server-class failure propagates. Offline: enqueue
// without touching the network. Queued mutations return a SourcePending
// result carrying the durable request id.
func (g *Gateway) Mutate(ctx context.Context, mut posapi.Mutation) (Result, error) {
	if g.monitor.IsOnline() {
		body, err := g.transport.Do(ctx, mut.Method(), mut.Path(), mut.Body(), nil)
		if err == nil {
			g.invalidateAffectedCache(ctx, mut)
			return Result{Source: SourceConfirmed, Data: body}, nil
		}
		if posapi.IsServerError(err) {
			return Result{}, err
		}
		g.logger.Info("mutation hit network failure, queueing for sync",
			"kind", mut.Kind, "error", err)
		res, qErr := g.enqueue(ctx, mut)
		if qErr != nil {
			return Result{}, qErr
		}
		if g.OnEnqueue != nil {
			g.OnEnqueue()
		}
		return res, nil
	}
	return g.enqueue(ctx, mut)
}

// CancelPending removes a queued mutation and its shadow records atomically,
// before it has been replayed.
func (g *Gateway) CancelPending(ctx context.Context, requestID string) error {
	return g.store.CancelPending(ctx, requestID)
}

func (g *Gateway) fromCache(ctx context.Context, path string) (Result, error) {
	data, ok, err := g.store.GetCache(ctx, path)
	if err != nil {
		g.logger.Warn("cache read failed", "path", path, "error", err)
		return Result{Source: SourceUnavailable}, nil
	}
	if !ok {
		return Result{Source: SourceUnavailable}, nil
	}
	return Result{Source: SourceCached, Data: data}, nil
}

func (g *Gateway) enqueue(ctx context.Context, mut posapi.Mutation) (Result, error) {
	requestID := NewRequestID()
	now := g.now().UnixMilli()
	req := PendingRequest{
		ID:        requestID,
		Method:    mut.Method(),
		URL:       mut.Path(),
		Body:      mut.Body(),
		Headers:   map[string]string{posapi.HeaderRequestID: requestID},
		Timestamp: now,
	}

	var err error
	switch mut.Kind {
	case posapi.MutSaleCreate:
		sale, movements := g.buildSaleShadow(ctx, mut, requestID, now)
		err = g.store.EnqueueSale(ctx, req, sale, movements)
	case posapi.MutProductCreate:
		err = g.store.EnqueueProduct(ctx, req, buildProductShadow(mut, requestID, now))
	case posapi.MutStockMovement:
		err = g.store.EnqueueStockMovement(ctx, req, LocalStockMovement{
			ID:        "stock-" + requestID + "-" + mut.ProductID,
			ProductID: mut.ProductID,
			Quantity:  mut.Stock.Quantity,
			Type:      mut.Stock.Type,
			RequestID: requestID,
			Timestamp: now,
		})
	default:
		err = g.store.EnqueueEntity(ctx, req, LocalEntity{
			ID:         "entity-" + requestID,
			EntityType: mut.EntityType(),
			BusinessID: mut.BusinessID,
			EntityID:   mut.EntityID(),
			Entity:     mut.Body(),
			Operation:  mut.EntityOperation(),
			RequestID:  requestID,
			Timestamp:  now,
		})
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to queue %s: %w", mut.Kind, err)
	}

	resp := posapi.PendingResponse{
		Message:   "queued for synchronization",
		RequestID: requestID,
	}
	data, _ := json.Marshal(resp)
	return Result{Source: SourcePending, Data: data, RequestID: requestID}, nil
}

// buildSaleShadow denormalizes a queued sale so the UI can render it (and its
// receipt) without another round trip: product names and unit prices come
// from the cached product list and local product shadows, totals and tax are
// computed here, and the receipt number is the provisional TEMP token.
func (g *Gateway) buildSaleShadow(ctx context.Context, mut posapi.Mutation, requestID string, now int64) (LocalSale, []LocalStockMovement) {
	catalog := g.productCatalog(ctx, mut.BusinessID)

	items := make([]posapi.SaleItemDTO, 0, len(mut.Sale.Items))
	movements := make([]LocalStockMovement, 0, len(mut.Sale.Items))
	for _, line := range mut.Sale.Items {
		item := posapi.SaleItemDTO{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		if p, ok := catalog[line.ProductID]; ok {
			item.ProductName = p.Name
			item.UnitPrice = p.Price
		}
		items = append(items, item)
		movements = append(movements, LocalStockMovement{
			ID:        "stock-" + requestID + "-" + line.ProductID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Type:      posapi.MovementSale,
			RequestID: requestID,
			Timestamp: now,
		})
	}

	total, tax := posapi.SaleTotals(items)
	localID := "local-" + requestID
	receipt := posapi.TempReceiptNumber(requestID)
	sale := LocalSale{
		ID:         localID,
		BusinessID: mut.BusinessID,
		Sale: posapi.SaleDTO{
			ID:            localID,
			BusinessID:    mut.BusinessID,
			CashierID:     mut.Sale.CashierID,
			SaleDate:      g.now().UTC().Format(time.RFC3339),
			Items:         items,
			TotalAmount:   total,
			TaxAmount:     tax,
			Method:        mut.Sale.Method,
			ReceiptNumber: receipt,
		},
		RequestID:     requestID,
		Timestamp:     now,
		ReceiptNumber: receipt,
	}
	return sale, movements
}

// productCatalog merges the cached product list with local product shadows,
// keyed by product id. Best effort: an empty catalog only degrades the
// denormalized display data, never the queued mutation itself.
func (g *Gateway) productCatalog(ctx context.Context, businessID string) map[string]posapi.ProductDTO {
	catalog := make(map[string]posapi.ProductDTO)
	if data, ok, err := g.store.GetCache(ctx, posapi.ProductsPath(businessID)); err == nil && ok {
		var products []posapi.ProductDTO
		if err := json.Unmarshal(data, &products); err == nil {
			for _, p := range products {
				catalog[p.ID] = p
			}
		}
	}
	if locals, err := g.store.LocalProducts(ctx, businessID); err == nil {
		for _, lp := range locals {
			catalog[lp.ID] = lp.Product
		}
	}
	return catalog
}

func buildProductShadow(mut posapi.Mutation, requestID string, now int64) LocalProduct {
	localID := LocalProductID(requestID)
	return LocalProduct{
		ID:         localID,
		BusinessID: mut.BusinessID,
		Product: posapi.ProductDTO{
			ID:            localID,
			BusinessID:    mut.BusinessID,
			Name:          mut.Product.Name,
			Reference:     mut.Product.Reference,
			Price:         mut.Product.Price,
			TaxRate:       mut.Product.TaxRate,
			CategoryID:    mut.Product.CategoryID,
			StockQuantity: mut.Product.InitialQuantity,
		},
		RequestID: requestID,
		Timestamp: now,
	}
}

// invalidateAffectedCache drops the cache entries a successful mutation
// stales. Listing keys carry pagination suffixes, so prefixes are used where
// the route names the business and substring matching where it does not.
func (g *Gateway) invalidateAffectedCache(ctx context.Context, mut posapi.Mutation) {
	invalidateCacheFor(ctx, g.store, g.logger, mut)
}

func invalidateCacheFor(ctx context.Context, store *Store, logger *slog.Logger, mut posapi.Mutation) {
	var err error
	switch mut.Kind {
	case posapi.MutSaleCreate:
		// A sale stales both the sales listing and product stock levels.
		if err = store.InvalidateCachePrefix(ctx, posapi.SalesPath(mut.BusinessID)); err == nil {
			err = store.InvalidateCachePrefix(ctx, posapi.ProductsPath(mut.BusinessID))
		}
	case posapi.MutProductCreate:
		err = store.InvalidateCachePrefix(ctx, posapi.ProductsPath(mut.BusinessID))
	case posapi.MutProductPatch, posapi.MutProductDelete, posapi.MutStockMovement:
		// The route names only the product, not its business.
		err = store.InvalidateCacheContaining(ctx, "/products")
	case posapi.MutCategoryCreate:
		err = store.InvalidateCachePrefix(ctx, posapi.CategoriesPath(mut.BusinessID))
	case posapi.MutCategoryPatch, posapi.MutCategoryDelete:
		err = store.InvalidateCacheContaining(ctx, "/product-categories")
	}
	if err != nil {
		logger.Warn("cache invalidation failed", "kind", mut.Kind, "error", err)
	}
}
