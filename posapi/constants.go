// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

// Stock movement types
const (
	MovementIn   = "IN"
	MovementOut  = "OUT"
	MovementSale = "SALE"
)

// Entity operations carried by generic entity shadows
const (
	OpCreate = "CREATE"
	OpPatch  = "PATCH"
	OpDelete = "DELETE"
)

// Entity types for generic shadow records
const (
	EntityCategory = "product-category"
	EntityProduct  = "product"
)

// HeaderRequestID carries the durable client request id so a server may
// deduplicate replayed mutations. The client does not depend on it.
const HeaderRequestID = "X-Request-ID"

// VATRatePercent is the VAT rate applied to sale totals.
const VATRatePercent = 18
