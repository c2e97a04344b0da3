// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProbeFunc performs one active reachability check against the backend's
// liveness endpoint. nil means reachable.
type ProbeFunc func(ctx context.Context) error

// MonitorConfig holds timing for the network state monitor.
type MonitorConfig struct {
	ProbeTimeout time.Duration // bound on a single probe
	Debounce     time.Duration // delay after a link-up hint before probing
	Interval     time.Duration // background re-validation period
}

// DefaultMonitorConfig returns the standard monitor timings.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		ProbeTimeout: 5 * time.Second,
		Debounce:     1500 * time.Millisecond,
		Interval:     30 * time.Second,
	}
}

// Monitor tracks server reachability. Link-layer hints (the platform's
// online/offline events) are never trusted blindly: an up-hint only schedules
// a debounced active probe, because link state says nothing about server
// reachability. A periodic background probe re-validates even without hints
// and demotes to offline when the server stops answering.
type Monitor struct {
	probe  ProbeFunc
	config *MonitorConfig
	logger *slog.Logger

	mu      sync.Mutex
	online  bool
	subs    map[int]chan bool
	nextSub int

	kick chan struct{}
}

// NewMonitor creates a monitor around an active probe. The initial state is
// offline until the first probe succeeds.
func NewMonitor(probe ProbeFunc, config *MonitorConfig, logger *slog.Logger) *Monitor {
	if config == nil {
		config = DefaultMonitorConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		probe:  probe,
		config: config,
		logger: logger,
		subs:   make(map[int]chan bool),
		kick:   make(chan struct{}, 1),
	}
}

// IsOnline returns the latest known connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a stream of connectivity transitions and a cancel
// function. Slow subscribers miss intermediate transitions rather than block
// the monitor.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan bool, 8)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetLinkState ingests a platform link-layer hint. A down-hint demotes
// immediately; an up-hint only requests a debounced verification probe so
// flaky reconnections do not thrash the sync engine.
func (m *Monitor) SetLinkState(up bool) {
	if !up {
		m.setOnline(false)
		return
	}
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// CheckConnection performs a one-shot verified reachability check, updates
// the monitor state, and returns the result.
func (m *Monitor) CheckConnection(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()
	err := m.probe(probeCtx)
	if err != nil {
		m.logger.Debug("connectivity probe failed", "error", err)
	}
	m.setOnline(err == nil)
	return err == nil
}

// Run drives the monitor: an immediate startup probe, debounced probes after
// link-up hints, and periodic background re-validation. Returns when ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckConnection(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	debounce := time.NewTimer(m.config.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.kick:
			// Restart the debounce window on every hint burst.
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(m.config.Debounce)
		case <-debounce.C:
			m.CheckConnection(ctx)
		case <-ticker.C:
			m.CheckConnection(ctx)
		}
	}
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
		}
	}
}
