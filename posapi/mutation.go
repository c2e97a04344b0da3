// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// MutationKind tags the variants of the mutation union.
type MutationKind string

const (
	MutSaleCreate     MutationKind = "sale.create"
	MutProductCreate  MutationKind = "product.create"
	MutProductPatch   MutationKind = "product.patch"
	MutProductDelete  MutationKind = "product.delete"
	MutStockMovement  MutationKind = "stock.movement"
	MutCategoryCreate MutationKind = "category.create"
	MutCategoryPatch  MutationKind = "category.patch"
	MutCategoryDelete MutationKind = "category.delete"
)

// Mutation is the typed form of a mutating API call. Exactly one payload
// field matching Kind is set. The gateway decodes raw method+path+body pairs
// into this union at its boundary; everything past the boundary works with
// typed route parameters instead of identifiers scraped back out of URLs.
type Mutation struct {
	Kind MutationKind

	BusinessID string
	ProductID  string
	CategoryID string

	Sale     *SaleCreateRequest
	Product  *ProductCreateRequest
	Patch    *ProductPatchRequest
	Stock    *StockMovementCreateRequest
	Category *CategoryChangeRequest
}

// NewSaleCreate builds a sale creation mutation.
func NewSaleCreate(businessID string, req SaleCreateRequest) Mutation {
	return Mutation{Kind: MutSaleCreate, BusinessID: businessID, Sale: &req}
}

// NewProductCreate builds a product creation mutation.
func NewProductCreate(businessID string, req ProductCreateRequest) Mutation {
	return Mutation{Kind: MutProductCreate, BusinessID: businessID, Product: &req}
}

// NewProductPatch builds a partial product update mutation.
func NewProductPatch(productID string, req ProductPatchRequest) Mutation {
	return Mutation{Kind: MutProductPatch, ProductID: productID, Patch: &req}
}

// NewProductDelete builds a product deletion mutation.
func NewProductDelete(productID string) Mutation {
	return Mutation{Kind: MutProductDelete, ProductID: productID}
}

// NewStockMovement builds a stock movement mutation.
func NewStockMovement(productID string, req StockMovementCreateRequest) Mutation {
	return Mutation{Kind: MutStockMovement, ProductID: productID, Stock: &req}
}

// NewCategoryCreate builds a category creation mutation.
func NewCategoryCreate(businessID string, req CategoryChangeRequest) Mutation {
	return Mutation{Kind: MutCategoryCreate, BusinessID: businessID, Category: &req}
}

// NewCategoryPatch builds a category rename mutation.
func NewCategoryPatch(categoryID string, req CategoryChangeRequest) Mutation {
	return Mutation{Kind: MutCategoryPatch, CategoryID: categoryID, Category: &req}
}

// NewCategoryDelete builds a category deletion mutation.
func NewCategoryDelete(categoryID string) Mutation {
	return Mutation{Kind: MutCategoryDelete, CategoryID: categoryID}
}

// Method returns the HTTP method for the mutation.
func (m Mutation) Method() string {
	switch m.Kind {
	case MutProductPatch, MutCategoryPatch:
		return http.MethodPatch
	case MutProductDelete, MutCategoryDelete:
		return http.MethodDelete
	default:
		return http.MethodPost
	}
}

// Path returns the API path the mutation targets.
func (m Mutation) Path() string {
	switch m.Kind {
	case MutSaleCreate:
		return SalesPath(m.BusinessID)
	case MutProductCreate:
		return ProductsPath(m.BusinessID)
	case MutProductPatch, MutProductDelete:
		return ProductPath(m.ProductID)
	case MutStockMovement:
		return StockMovementsPath(m.ProductID)
	case MutCategoryCreate:
		return CategoriesPath(m.BusinessID)
	case MutCategoryPatch, MutCategoryDelete:
		return CategoryPath(m.CategoryID)
	default:
		return ""
	}
}

// Body returns the JSON body for the mutation, or nil for bodiless deletes.
func (m Mutation) Body() json.RawMessage {
	switch m.Kind {
	case MutSaleCreate:
		return mustMarshal(m.Sale)
	case MutProductCreate:
		return mustMarshal(m.Product)
	case MutProductPatch:
		return mustMarshal(m.Patch)
	case MutStockMovement:
		return mustMarshal(m.Stock)
	case MutCategoryCreate, MutCategoryPatch:
		return mustMarshal(m.Category)
	default:
		return nil
	}
}

// CanonicalKey derives a duplicate-intent key from business-meaningful fields
// only. Two queued mutations with equal canonical keys are the same logical
// operation; wall-clock timestamps and generated ids never contribute.
func (m Mutation) CanonicalKey() string {
	var b strings.Builder
	b.WriteString(string(m.Kind))
	b.WriteByte('|')
	switch m.Kind {
	case MutSaleCreate:
		b.WriteString(m.BusinessID)
		b.WriteByte('|')
		b.WriteString(m.Sale.CashierID)
		b.WriteByte('|')
		items := make([]string, len(m.Sale.Items))
		for i, it := range m.Sale.Items {
			items[i] = fmt.Sprintf("%s:%d", it.ProductID, it.Quantity)
		}
		sort.Strings(items)
		b.WriteString(strings.Join(items, ","))
	case MutProductCreate:
		p := m.Product
		fmt.Fprintf(&b, "%s|%s|%s|%s|%s",
			m.BusinessID, p.Name, p.Reference, p.Price.String(), p.TaxRate.String())
	case MutProductPatch:
		b.WriteString(m.ProductID)
		b.WriteByte('|')
		b.WriteString(payloadHash(mustMarshal(m.Patch)))
	case MutProductDelete:
		b.WriteString(m.ProductID)
	case MutStockMovement:
		s := m.Stock
		fmt.Fprintf(&b, "%s|%s|%d", m.ProductID, s.Type, s.Quantity)
	case MutCategoryCreate:
		b.WriteString(m.BusinessID)
		b.WriteByte('|')
		b.WriteString(m.Category.Name)
	case MutCategoryPatch:
		b.WriteString(m.CategoryID)
		b.WriteByte('|')
		b.WriteString(m.Category.Name)
	case MutCategoryDelete:
		b.WriteString(m.CategoryID)
	}
	return b.String()
}

// EntityType returns the generic entity type for mutations shadowed as
// LocalEntity records, or "" for kinds with dedicated shadow collections.
func (m Mutation) EntityType() string {
	switch m.Kind {
	case MutCategoryCreate, MutCategoryPatch, MutCategoryDelete:
		return EntityCategory
	case MutProductPatch, MutProductDelete:
		return EntityProduct
	default:
		return ""
	}
}

// EntityID returns the server-side id the entity mutation targets, or "" for
// creations where the server has not issued one yet.
func (m Mutation) EntityID() string {
	switch m.Kind {
	case MutCategoryPatch, MutCategoryDelete:
		return m.CategoryID
	case MutProductPatch, MutProductDelete:
		return m.ProductID
	default:
		return ""
	}
}

// EntityOperation maps the mutation kind to a shadow operation tag.
func (m Mutation) EntityOperation() string {
	switch m.Kind {
	case MutCategoryCreate:
		return OpCreate
	case MutCategoryPatch, MutProductPatch:
		return OpPatch
	case MutCategoryDelete, MutProductDelete:
		return OpDelete
	default:
		return ""
	}
}

// DecodeMutation reconstructs a typed mutation from the durable
// method+path+body form a pending request is stored in. It is the inverse of
// Method/Path/Body for every mutation kind.
func DecodeMutation(method, path string, body json.RawMessage) (Mutation, error) {
	method = strings.ToUpper(method)
	segs := splitPath(path)

	fail := func() (Mutation, error) {
		return Mutation{}, fmt.Errorf("unroutable mutation: %s %s", method, path)
	}

	switch {
	case len(segs) == 3 && segs[0] == "businesses" && segs[2] == "sales" && method == http.MethodPost:
		var req SaleCreateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return Mutation{}, fmt.Errorf("decode sale body: %w", err)
		}
		return NewSaleCreate(segs[1], req), nil

	case len(segs) == 3 && segs[0] == "businesses" && segs[2] == "products" && method == http.MethodPost:
		var req ProductCreateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return Mutation{}, fmt.Errorf("decode product body: %w", err)
		}
		return NewProductCreate(segs[1], req), nil

	case len(segs) == 3 && segs[0] == "businesses" && segs[2] == "product-categories" && method == http.MethodPost:
		var req CategoryChangeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return Mutation{}, fmt.Errorf("decode category body: %w", err)
		}
		return NewCategoryCreate(segs[1], req), nil

	case len(segs) == 3 && segs[0] == "products" && segs[2] == "stock-movements" && method == http.MethodPost:
		var req StockMovementCreateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return Mutation{}, fmt.Errorf("decode stock movement body: %w", err)
		}
		return NewStockMovement(segs[1], req), nil

	case len(segs) == 2 && segs[0] == "products":
		switch method {
		case http.MethodPatch:
			var req ProductPatchRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return Mutation{}, fmt.Errorf("decode product patch: %w", err)
			}
			return NewProductPatch(segs[1], req), nil
		case http.MethodDelete:
			return NewProductDelete(segs[1]), nil
		}
		return fail()

	case len(segs) == 2 && segs[0] == "product-categories":
		switch method {
		case http.MethodPatch:
			var req CategoryChangeRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return Mutation{}, fmt.Errorf("decode category patch: %w", err)
			}
			return NewCategoryPatch(segs[1], req), nil
		case http.MethodDelete:
			return NewCategoryDelete(segs[1]), nil
		}
		return fail()
	}
	return fail()
}

func payloadHash(body json.RawMessage) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}
