// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// ConsolidatePending folds dependent queued mutations into the pending product
// create they target. A product that only exists locally is addressed by its
// provisional id, so stock movements against it become part of the create's
// initial quantity, patches merge into the create body, and a delete cancels
// the whole chain. The server only ever sees the consolidated create (or
// nothing at all). Returns the number of requests removed from the queue.
func (s *Store) ConsolidatePending(ctx context.Context, logger *slog.Logger) (int, error) {
	reqs, err := s.PendingRequests(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, root := range reqs {
		mut, err := posapi.DecodeMutation(root.Method, root.URL, root.Body)
		if err != nil || mut.Kind != posapi.MutProductCreate {
			continue
		}
		localID := LocalProductID(root.ID)

		create := *mut.Product
		var folded []string
		deleted := false
		for _, other := range reqs {
			if other.ID == root.ID {
				continue
			}
			dep, err := posapi.DecodeMutation(other.Method, other.URL, other.Body)
			if err != nil || dep.ProductID != localID {
				continue
			}
			switch dep.Kind {
			case posapi.MutStockMovement:
				quantity := LocalStockMovement{
					Quantity: dep.Stock.Quantity,
					Type:     dep.Stock.Type,
				}.SignedQuantity()
				create.InitialQuantity += quantity
				folded = append(folded, other.ID)
			case posapi.MutProductPatch:
				posapi.MergePatch(&create, dep.Patch)
				folded = append(folded, other.ID)
			case posapi.MutProductDelete:
				folded = append(folded, other.ID)
				deleted = true
			}
			if deleted {
				break
			}
		}

		if deleted {
			// The product never reached the server; the delete annihilates
			// the create and everything folded between them.
			chain := append([]string{root.ID}, folded...)
			if err := s.dropChain(ctx, chain); err != nil {
				return removed, fmt.Errorf("failed to cancel create chain %s: %w", root.ID, err)
			}
			removed += len(chain)
			logger.Info("queued delete cancelled unsynced product create",
				"request_id", root.ID, "dropped", len(chain))
			continue
		}
		if len(folded) == 0 {
			continue
		}

		if create.InitialQuantity < 0 {
			create.InitialQuantity = 0
		}
		body := posapi.NewProductCreate(mut.BusinessID, create).Body()
		if err := s.consolidateFold(ctx, root.ID, body, folded); err != nil {
			return removed, err
		}
		removed += len(folded)
		if err := s.refreshProductShadow(ctx, root.ID, mut.BusinessID, create); err != nil {
			logger.Warn("failed to refresh consolidated product shadow",
				"request_id", root.ID, "error", err)
		}
		logger.Info("consolidated queued mutations into pending product create",
			"request_id", root.ID, "folded", len(folded),
			"initial_quantity", create.InitialQuantity)
	}
	return removed, nil
}

// refreshProductShadow keeps the local product shadow in step with a
// consolidated create body so offline reads show the folded state.
func (s *Store) refreshProductShadow(ctx context.Context, requestID, businessID string, create posapi.ProductCreateRequest) error {
	localID := LocalProductID(requestID)
	return s.UpdateLocalProduct(ctx, localID, posapi.ProductDTO{
		ID:            localID,
		BusinessID:    businessID,
		Name:          create.Name,
		Reference:     create.Reference,
		Price:         create.Price,
		TaxRate:       create.TaxRate,
		CategoryID:    create.CategoryID,
		StockQuantity: create.InitialQuantity,
	})
}
