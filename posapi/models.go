// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SaleItemRequest is one cart line in a sale creation request.
type SaleItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// SaleCreateRequest is the body of POST /businesses/{id}/sales.
type SaleCreateRequest struct {
	CashierID string            `json:"cashierId"`
	Items     []SaleItemRequest `json:"items"`
	Method    string            `json:"method"` // payment method (CASH, CARD, ...)
}

// SaleItemDTO is a denormalized sale line as returned by the server and as
// stored in local sale shadows (enough to render a receipt with no extra
// round trip).
type SaleItemDTO struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// SaleDTO is a confirmed (or shadowed) sale.
type SaleDTO struct {
	ID            string          `json:"id"`
	BusinessID    string          `json:"businessId"`
	CashierID     string          `json:"cashierId"`
	SaleDate      string          `json:"saleDate"` // RFC 3339
	Items         []SaleItemDTO   `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	Method        string          `json:"method"`
	ReceiptNumber string          `json:"receiptNumber,omitempty"`
}

// ProductCreateRequest is the body of POST /businesses/{id}/products.
type ProductCreateRequest struct {
	Name            string          `json:"name"`
	Reference       string          `json:"reference,omitempty"`
	Price           decimal.Decimal `json:"price"`
	TaxRate         decimal.Decimal `json:"taxRate"`
	CategoryID      string          `json:"categoryId,omitempty"`
	InitialQuantity int64           `json:"initialQuantity"`
}

// ProductPatchRequest is a partial product update (PATCH /products/{id}).
// Nil fields are left untouched.
type ProductPatchRequest struct {
	Name       *string          `json:"name,omitempty"`
	Reference  *string          `json:"reference,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	TaxRate    *decimal.Decimal `json:"taxRate,omitempty"`
	CategoryID *string          `json:"categoryId,omitempty"`
}

// ProductDTO is a product as returned by the server.
type ProductDTO struct {
	ID            string          `json:"id"`
	BusinessID    string          `json:"businessId"`
	Name          string          `json:"name"`
	Reference     string          `json:"reference,omitempty"`
	Price         decimal.Decimal `json:"price"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	CategoryID    string          `json:"categoryId,omitempty"`
	StockQuantity int64           `json:"stockQuantity"`
}

// StockMovementCreateRequest is the body of POST /products/{id}/stock-movements.
type StockMovementCreateRequest struct {
	Quantity int64  `json:"quantity"`
	Type     string `json:"type"` // IN, OUT or SALE
	Reason   string `json:"reason,omitempty"`
}

// CategoryDTO is a product category.
type CategoryDTO struct {
	ID         string `json:"id"`
	BusinessID string `json:"businessId"`
	Name       string `json:"name"`
}

// CategoryChangeRequest is the body of category create/patch operations.
type CategoryChangeRequest struct {
	Name string `json:"name"`
}

// BusinessDTO is the business profile used for receipts.
type BusinessDTO struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Address                string `json:"address,omitempty"`
	Phone                  string `json:"phone,omitempty"`
	Email                  string `json:"email,omitempty"`
	CommerceRegisterNumber string `json:"commerceRegisterNumber,omitempty"`
}

// PendingResponse is the body returned for a mutation that was queued locally
// instead of being confirmed by the server.
type PendingResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// ErrorResponse is the error envelope the server returns on 4xx/5xx.
type ErrorResponse struct {
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// MergePatch applies a product patch on top of a create body, field by field.
// Used by queue consolidation to fold offline edits into a pending create.
func MergePatch(create *ProductCreateRequest, patch *ProductPatchRequest) {
	if patch.Name != nil {
		create.Name = *patch.Name
	}
	if patch.Reference != nil {
		create.Reference = *patch.Reference
	}
	if patch.Price != nil {
		create.Price = *patch.Price
	}
	if patch.TaxRate != nil {
		create.TaxRate = *patch.TaxRate
	}
	if patch.CategoryID != nil {
		create.CategoryID = *patch.CategoryID
	}
}

// mustMarshal is a helper for bodies that are built from known structs.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err) // known struct shapes cannot fail to marshal
	}
	return b
}
