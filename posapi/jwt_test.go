// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"net/http"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	tok, err := auth.GenerateToken("cash-1", "biz-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := auth.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "cash-1" || claims.BusinessID != "biz-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	tok, err := NewJWTAuth("secret-a").GenerateToken("cash-1", "biz-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := NewJWTAuth("secret-b").ValidateToken(tok); err == nil {
		t.Fatalf("token signed with another secret must not validate")
	}
}

func TestJWTExpired(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	tok, err := auth.GenerateToken("cash-1", "biz-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := auth.ValidateToken(tok); err == nil {
		t.Fatalf("expired token must not validate")
	}
}

func TestClaimsFromRequest(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	tok, err := auth.GenerateToken("cash-1", "biz-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "/businesses/biz-1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	claims, err := auth.ClaimsFromRequest(req)
	if err != nil {
		t.Fatalf("ClaimsFromRequest failed: %v", err)
	}
	if claims.BusinessID != "biz-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	bare, _ := http.NewRequest(http.MethodGet, "/businesses/biz-1", nil)
	if _, err := auth.ClaimsFromRequest(bare); err == nil {
		t.Fatalf("missing authorization header must fail")
	}
}

func TestTokenSourceCaches(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	source := auth.TokenSource("cash-1", "biz-1", time.Hour)

	first, err := source()
	if err != nil {
		t.Fatalf("token source failed: %v", err)
	}
	second, err := source()
	if err != nil {
		t.Fatalf("token source failed: %v", err)
	}
	if first != second {
		t.Fatalf("token must be cached until close to expiry")
	}
}
