// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Receipt numbers: a sale queued offline gets a temporary TEMP-… token derived
// from its durable request id; the authoritative INV-… number is derived from
// the server-issued sale id once the queued request has been replayed.

const (
	tempReceiptPrefix  = "TEMP-"
	finalReceiptPrefix = "INV-"
)

// TempReceiptNumber derives the provisional receipt token for a queued sale.
func TempReceiptNumber(requestID string) string {
	frag := requestID
	if i := strings.IndexByte(frag, '-'); i >= 0 && i+1 < len(frag) {
		frag = frag[i+1:]
	}
	if len(frag) > 8 {
		frag = frag[:8]
	}
	return tempReceiptPrefix + strings.ToUpper(frag)
}

// FinalReceiptNumber derives the permanent receipt number from a server sale id.
func FinalReceiptNumber(serverID string) string {
	id := serverID
	if len(id) > 12 {
		id = id[:12]
	}
	return finalReceiptPrefix + strings.ToUpper(id)
}

// IsTempReceiptNumber reports whether a receipt number is still provisional.
func IsTempReceiptNumber(n string) bool {
	return strings.HasPrefix(n, tempReceiptPrefix)
}

var vatDivisor = decimal.NewFromInt(100 + VATRatePercent)

// SaleTotals computes the VAT-inclusive total and the contained tax amount for
// a set of sale lines. Amounts are decimal all the way; the tax share is
// total × rate/(100+rate) rounded to 2 places.
func SaleTotals(items []SaleItemDTO) (total, tax decimal.Decimal) {
	total = decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}
	tax = total.Mul(decimal.NewFromInt(VATRatePercent)).Div(vatDivisor).Round(2)
	return total, tax
}
