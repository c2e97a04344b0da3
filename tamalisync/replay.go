// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// ErrOffline is returned by Sync when the pre-drain probe finds the server
// unreachable. Nothing is dequeued; the run still emits a halted report.
var ErrOffline = errors.New("server unreachable")

// SyncConfig tunes the replayer.
type SyncConfig struct {
	// Debounce delays the sync triggered by an offline-to-online transition,
	// absorbing connectivity flaps.
	Debounce time.Duration
	// MaxAttempts bounds in-run retries per request. Only network-class
	// failures are retried; a server verdict is final.
	MaxAttempts int
	// RetryBackoff is the initial pause between retries. It doubles on each
	// subsequent attempt.
	RetryBackoff time.Duration
}

// DefaultSyncConfig returns the production tuning.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Debounce:     1500 * time.Millisecond,
		MaxAttempts:  3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// SyncFailure records one server-rejected request dropped during a run.
type SyncFailure struct {
	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Message    string
}

// SyncReport summarizes one completed replay run. Exactly one report is
// emitted per run, even when the queue was empty.
type SyncReport struct {
	Started      time.Time
	Duration     time.Duration
	Consolidated int
	Deduplicated int
	Replayed     int
	Failed       int
	Remaining    int
	// Halted is set when a mid-run network failure stopped the drain. The
	// unreplayed tail stays queued for the next run.
	Halted   bool
	Failures []SyncFailure
}

// Syncer drains the pending queue against the server, oldest first. Runs are
// mutually exclusive: a Sync call that finds a run in flight joins it and
// returns that run's report instead of starting a second drain.
type Syncer struct {
	store     *Store
	monitor   *Monitor
	transport *Transport
	logger    *slog.Logger
	config    *SyncConfig

	mu     sync.Mutex
	done   chan struct{} // non-nil while a run is in flight
	report SyncReport
	runErr error
	events chan SyncReport

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncer wires a replayer. Pass nil config for defaults.
func NewSyncer(store *Store, monitor *Monitor, transport *Transport, config *SyncConfig, logger *slog.Logger) *Syncer {
	if config == nil {
		config = DefaultSyncConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:     store,
		monitor:   monitor,
		transport: transport,
		logger:    logger,
		config:    config,
		events:    make(chan SyncReport, 8),
		sleep:     sleepCtx,
	}
}

// Notify returns the channel sync reports are published on. Slow consumers
// drop reports rather than blocking the replayer.
func (y *Syncer) Notify() <-chan SyncReport {
	return y.events
}

// Sync replays the pending queue. If a run is already in flight the call
// blocks until that run finishes and returns its outcome, so concurrent
// triggers collapse into a single drain.
func (y *Syncer) Sync(ctx context.Context) (SyncReport, error) {
	y.mu.Lock()
	if y.done != nil {
		done := y.done
		y.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return SyncReport{}, ctx.Err()
		}
		y.mu.Lock()
		report, err := y.report, y.runErr
		y.mu.Unlock()
		return report, err
	}
	done := make(chan struct{})
	y.done = done
	y.mu.Unlock()

	report, err := y.runOnce(ctx)

	y.mu.Lock()
	y.report, y.runErr = report, err
	y.done = nil
	y.mu.Unlock()
	close(done)

	// Exactly one notification per run, aborted runs included, so observers
	// refresh their views once per attempt.
	select {
	case y.events <- report:
	default:
		y.logger.Warn("sync report dropped, notify channel full")
	}
	return report, err
}

// Run subscribes to the network monitor and triggers a debounced Sync on
// every offline-to-online transition. It blocks until ctx is cancelled.
func (y *Syncer) Run(ctx context.Context) {
	online, cancel := y.monitor.Subscribe()
	defer cancel()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case up := <-online:
			if !up {
				if debounce != nil {
					debounce.Stop()
				}
				fire = nil
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(y.config.Debounce)
			} else {
				debounce.Stop()
				debounce.Reset(y.config.Debounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			if _, err := y.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				y.logger.Warn("triggered sync did not run", "error", err)
			}
		}
	}
}

func (y *Syncer) runOnce(ctx context.Context) (SyncReport, error) {
	report := SyncReport{Started: time.Now()}

	if !y.monitor.CheckConnection(ctx) {
		report.Halted = true
		report.Duration = time.Since(report.Started)
		return report, ErrOffline
	}

	consolidated, err := y.store.ConsolidatePending(ctx, y.logger)
	if err != nil {
		return SyncReport{}, fmt.Errorf("consolidation failed: %w", err)
	}
	report.Consolidated = consolidated

	deduplicated, err := y.store.DeduplicatePending(ctx, y.logger)
	if err != nil {
		return SyncReport{}, fmt.Errorf("deduplication failed: %w", err)
	}
	report.Deduplicated = deduplicated

	reqs, err := y.store.PendingRequests(ctx)
	if err != nil {
		return SyncReport{}, err
	}
	y.logger.Info("sync run starting",
		"queued", len(reqs), "consolidated", consolidated, "deduplicated", deduplicated)

	for i, req := range reqs {
		// Connectivity lost mid-run stops the drain with the tail still
		// queued in order. Replaying past a stuck request would reorder
		// causally dependent mutations.
		if !y.monitor.IsOnline() {
			report.Halted = true
			report.Remaining = len(reqs) - i
			y.logger.Warn("sync halted, connectivity lost mid-run", "remaining", report.Remaining)
			break
		}

		// Dequeue before executing so a crash mid-request cannot replay the
		// same mutation twice. The server-side X-Request-ID guard covers the
		// opposite loss window.
		if err := y.store.RemovePendingRequest(ctx, req.ID); err != nil {
			return report, err
		}

		body, err := y.execute(ctx, req)
		if err == nil {
			if recErr := y.reconcile(ctx, req, body); recErr != nil {
				y.logger.Error("failed to reconcile replayed request",
					"request_id", req.ID, "error", recErr)
			}
			report.Replayed++
			continue
		}

		if posapi.IsServerError(err) {
			// The server understood and rejected the mutation. Retrying an
			// identical payload cannot change the verdict, so the request and
			// its shadows are discarded and the rejection surfaced.
			var srvErr *posapi.ServerError
			errors.As(err, &srvErr)
			failure := SyncFailure{
				RequestID:  req.ID,
				Method:     req.Method,
				URL:        req.URL,
				StatusCode: srvErr.StatusCode,
				Message:    srvErr.Message("request rejected"),
			}
			report.Failed++
			report.Failures = append(report.Failures, failure)
			if dropErr := y.store.CancelPending(ctx, req.ID); dropErr != nil {
				y.logger.Error("failed to drop rejected request shadows",
					"request_id", req.ID, "error", dropErr)
			}
			y.logger.Warn("server rejected queued mutation",
				"request_id", req.ID, "status", srvErr.StatusCode, "message", failure.Message)
			continue
		}

		// Network-class failure after retries: the server may be gone
		// entirely. Requeue the head with its original timestamp, halt the
		// run, and let the monitor confirm the outage.
		if reqErr := y.store.AddPendingRequest(ctx, req); reqErr != nil {
			y.logger.Error("failed to requeue request after network failure",
				"request_id", req.ID, "error", reqErr)
		}
		report.Halted = true
		report.Remaining = len(reqs) - i
		y.monitor.CheckConnection(ctx)
		y.logger.Warn("sync halted on network failure",
			"request_id", req.ID, "remaining", report.Remaining, "error", err)
		break
	}

	report.Duration = time.Since(report.Started)
	y.logger.Info("sync run finished",
		"replayed", report.Replayed, "failed", report.Failed,
		"remaining", report.Remaining, "halted", report.Halted,
		"duration", report.Duration)
	return report, nil
}

// execute performs one queued request with bounded retries. Network-class
// failures back off and retry; a server response of any status ends the
// attempts immediately.
func (y *Syncer) execute(ctx context.Context, req PendingRequest) (json.RawMessage, error) {
	backoff := y.config.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= y.config.MaxAttempts; attempt++ {
		body, err := y.transport.Do(ctx, req.Method, req.URL, req.Body, req.Headers)
		if err == nil {
			return body, nil
		}
		if posapi.IsServerError(err) {
			return nil, err
		}
		lastErr = err
		if attempt == y.config.MaxAttempts {
			break
		}
		y.logger.Debug("retrying queued request",
			"request_id", req.ID, "attempt", attempt, "backoff", backoff, "error", err)
		if err := y.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

// reconcile promotes local shadow state after the server confirms a replayed
// mutation, and drops the cache entries the mutation stales.
func (y *Syncer) reconcile(ctx context.Context, req PendingRequest, body json.RawMessage) error {
	mut, err := posapi.DecodeMutation(req.Method, req.URL, req.Body)
	if err != nil {
		return fmt.Errorf("replayed request is unroutable: %w", err)
	}

	switch mut.Kind {
	case posapi.MutSaleCreate:
		var dto posapi.SaleDTO
		if err := json.Unmarshal(body, &dto); err != nil {
			return fmt.Errorf("failed to decode confirmed sale: %w", err)
		}
		receipt := dto.ReceiptNumber
		if receipt == "" {
			receipt = posapi.FinalReceiptNumber(dto.ID)
		}
		if err := y.store.MarkLocalSaleSynced(ctx, "local-"+req.ID, dto.ID, receipt); err != nil {
			return err
		}
		if err := y.store.RemoveLocalStockMovementsByRequestID(ctx, req.ID); err != nil {
			return err
		}
	case posapi.MutProductCreate:
		if err := y.store.RemoveLocalProductByRequestID(ctx, req.ID); err != nil {
			return err
		}
	case posapi.MutStockMovement:
		if err := y.store.RemoveLocalStockMovementsByRequestID(ctx, req.ID); err != nil {
			return err
		}
	default:
		if err := y.store.RemoveLocalEntityByRequestID(ctx, req.ID); err != nil {
			return err
		}
	}

	invalidateCacheFor(ctx, y.store, y.logger, mut)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
