// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"log/slog"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// DeduplicatePending drops queued mutations whose canonical key collides with
// an earlier queued mutation. Canonical keys are built from
// business-meaningful fields only, so a cashier double-tapping "save" while
// offline produces one replayed request instead of two. The earliest entry
// survives; duplicates are removed with their shadow records. Returns the
// number of requests dropped.
func (s *Store) DeduplicatePending(ctx context.Context, logger *slog.Logger) (int, error) {
	reqs, err := s.PendingRequests(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]string, len(reqs))
	dropped := 0
	for _, req := range reqs {
		mut, err := posapi.DecodeMutation(req.Method, req.URL, req.Body)
		if err != nil {
			// An unroutable request cannot be judged a duplicate. Leave it
			// for the replayer to reject.
			continue
		}
		key := mut.CanonicalKey()
		if mut.Kind == posapi.MutStockMovement {
			// Two restocks of the same size are both legitimate intents, so
			// stock movements only collapse within a single request.
			key += "|" + req.ID
		}
		first, dup := seen[key]
		if !dup {
			seen[key] = req.ID
			continue
		}
		if err := s.CancelPending(ctx, req.ID); err != nil {
			return dropped, err
		}
		dropped++
		logger.Info("dropped duplicate queued mutation",
			"request_id", req.ID, "kept", first, "kind", mut.Kind)
	}
	return dropped, nil
}
