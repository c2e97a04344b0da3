// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// flakyProbe is a ProbeFunc whose outcome is flipped by tests.
type flakyProbe struct {
	fail atomic.Bool
}

func (p *flakyProbe) probe(context.Context) error {
	if p.fail.Load() {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func fastMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		ProbeTimeout: 100 * time.Millisecond,
		Debounce:     10 * time.Millisecond,
		Interval:     25 * time.Millisecond,
	}
}

func TestMonitorStartsOffline(t *testing.T) {
	p := &flakyProbe{}
	m := NewMonitor(p.probe, fastMonitorConfig(), nil)
	if m.IsOnline() {
		t.Fatalf("monitor must start offline until a probe succeeds")
	}
}

func TestCheckConnection(t *testing.T) {
	p := &flakyProbe{}
	m := NewMonitor(p.probe, fastMonitorConfig(), nil)
	ctx := context.Background()

	if !m.CheckConnection(ctx) || !m.IsOnline() {
		t.Fatalf("successful probe must promote to online")
	}

	p.fail.Store(true)
	if m.CheckConnection(ctx) || m.IsOnline() {
		t.Fatalf("failed probe must demote to offline")
	}
}

func TestLinkDownDemotesImmediately(t *testing.T) {
	p := &flakyProbe{}
	m := NewMonitor(p.probe, fastMonitorConfig(), nil)
	m.CheckConnection(context.Background())

	m.SetLinkState(false)
	if m.IsOnline() {
		t.Fatalf("a down hint must demote without waiting for a probe")
	}
}

func TestLinkUpHintIsVerifiedNotTrusted(t *testing.T) {
	p := &flakyProbe{}
	p.fail.Store(true)
	m := NewMonitor(p.probe, fastMonitorConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// The link claims up but the server stays unreachable: the monitor must
	// not report online on the hint alone.
	m.SetLinkState(true)
	time.Sleep(60 * time.Millisecond)
	if m.IsOnline() {
		t.Fatalf("up hint without a passing probe must not promote")
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	p := &flakyProbe{}
	m := NewMonitor(p.probe, fastMonitorConfig(), nil)
	ch, cancel := m.Subscribe()
	defer cancel()

	m.CheckConnection(context.Background())
	select {
	case up := <-ch:
		if !up {
			t.Fatalf("expected an online transition")
		}
	case <-time.After(time.Second):
		t.Fatalf("no transition delivered")
	}

	// No transition for a repeated identical state.
	m.CheckConnection(context.Background())
	select {
	case <-ch:
		t.Fatalf("unchanged state must not notify")
	case <-time.After(30 * time.Millisecond):
	}

	m.SetLinkState(false)
	select {
	case up := <-ch:
		if up {
			t.Fatalf("expected an offline transition")
		}
	case <-time.After(time.Second):
		t.Fatalf("no offline transition delivered")
	}
}

func TestPeriodicRevalidationDemotes(t *testing.T) {
	p := &flakyProbe{}
	m := NewMonitor(p.probe, fastMonitorConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for !m.IsOnline() {
		if time.Now().After(deadline) {
			t.Fatalf("startup probe never promoted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The server goes away with no link hint at all; the ticker must notice.
	p.fail.Store(true)
	deadline = time.Now().Add(time.Second)
	for m.IsOnline() {
		if time.Now().After(deadline) {
			t.Fatalf("periodic probe never demoted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
