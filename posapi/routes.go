// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"fmt"
	"strings"
)

// Path builders for the POS API route surface. The client core persists
// concrete method+path pairs, so paths are built and parsed here in one place
// with explicit segments instead of regex recovery.

// HealthPath is the liveness probe endpoint.
const HealthPath = "/health"

func BusinessPath(businessID string) string {
	return "/businesses/" + businessID
}

func SalesPath(businessID string) string {
	return "/businesses/" + businessID + "/sales"
}

// SalesPagePath is the paginated sales listing used for cache keys and reads.
func SalesPagePath(businessID string, page, size int) string {
	return fmt.Sprintf("%s?page=%d&size=%d", SalesPath(businessID), page, size)
}

func ProductsPath(businessID string) string {
	return "/businesses/" + businessID + "/products"
}

func ProductPath(productID string) string {
	return "/products/" + productID
}

func StockMovementsPath(productID string) string {
	return "/products/" + productID + "/stock-movements"
}

func CategoriesPath(businessID string) string {
	return "/businesses/" + businessID + "/product-categories"
}

func CategoryPath(categoryID string) string {
	return "/product-categories/" + categoryID
}

// splitPath splits a URL path into its non-empty segments, dropping any query
// string. "/businesses/b1/sales?page=0" -> ["businesses","b1","sales"].
func splitPath(path string) []string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}
