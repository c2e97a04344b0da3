// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuth mints and validates the bearer tokens the POS API expects. The
// client core only needs the minting side (through a token callback); the
// reference server uses the validating side.
type JWTAuth struct {
	secret []byte
}

// NewJWTAuth creates a new JWT authenticator.
func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret)}
}

// JWTClaims carries the business scope next to the standard claims.
type JWTClaims struct {
	BusinessID string `json:"bid"`
	jwt.RegisteredClaims
}

// GenerateToken generates an HS256 token for a cashier within a business.
func (j *JWTAuth) GenerateToken(cashierID, businessID string, expiration time.Duration) (string, error) {
	claims := &JWTClaims{
		BusinessID: businessID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "tamali-sync",
			Subject:   cashierID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken validates a token string and returns its claims.
func (j *JWTAuth) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, fmt.Errorf("missing sub (cashier ID) in token")
		}
		if claims.BusinessID == "" {
			return nil, fmt.Errorf("missing bid (business ID) in token")
		}
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// ClaimsFromRequest extracts and validates the bearer token of an HTTP request.
func (j *JWTAuth) ClaimsFromRequest(r *http.Request) (*JWTClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return nil, fmt.Errorf("bearer token required")
	}
	return j.ValidateToken(tokenString)
}

// TokenSource returns a token callback suitable for the client transport. The
// token is re-minted when it is close to expiry.
func (j *JWTAuth) TokenSource(cashierID, businessID string, expiration time.Duration) func() (string, error) {
	var cached string
	var renewAt time.Time
	return func() (string, error) {
		if cached != "" && time.Now().Before(renewAt) {
			return cached, nil
		}
		tok, err := j.GenerateToken(cashierID, businessID, expiration)
		if err != nil {
			return "", fmt.Errorf("failed to mint token: %w", err)
		}
		cached = tok
		renewAt = time.Now().Add(expiration / 2)
		return tok, nil
	}
}
