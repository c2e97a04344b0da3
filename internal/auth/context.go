// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
)

type contextKey string

const (
	businessIDKey contextKey = "business_id"
	cashierIDKey  contextKey = "cashier_id"
)

// WithBusinessID sets the authenticated business ID in the context
func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessIDKey, businessID)
}

// BusinessID retrieves the authenticated business ID from the context
func BusinessID(ctx context.Context) (string, bool) {
	businessID, ok := ctx.Value(businessIDKey).(string)
	return businessID, ok
}

// WithCashierID sets the authenticated cashier ID in the context
func WithCashierID(ctx context.Context, cashierID string) context.Context {
	return context.WithValue(ctx, cashierIDKey, cashierID)
}

// CashierID retrieves the authenticated cashier ID from the context
func CashierID(ctx context.Context) (string, bool) {
	cashierID, ok := ctx.Value(cashierIDKey).(string)
	return cashierID, ok
}

// WithIdentity sets both the business and cashier identity in the context
func WithIdentity(ctx context.Context, businessID, cashierID string) context.Context {
	ctx = WithBusinessID(ctx, businessID)
	ctx = WithCashierID(ctx, cashierID)
	return ctx
}
