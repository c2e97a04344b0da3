// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AmadouLah/tamali-sync/internal/auth"
)

// Server is an in-memory reference implementation of the POS API route
// surface. It backs the simulator and the end-to-end client tests; it is not
// a production server. State lives behind a single mutex since test traffic
// is tiny.
type Server struct {
	auth   *JWTAuth
	logger *slog.Logger

	mu         sync.Mutex
	businesses map[string]*BusinessDTO
	products   map[string]*ProductDTO
	categories map[string]*CategoryDTO
	sales      []SaleDTO
	seenReqIDs map[string]string // X-Request-ID -> created entity id
}

// NewServer creates a reference server. A nil auth disables bearer checks.
func NewServer(auth *JWTAuth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:       auth,
		logger:     logger,
		businesses: make(map[string]*BusinessDTO),
		products:   make(map[string]*ProductDTO),
		categories: make(map[string]*CategoryDTO),
		seenReqIDs: make(map[string]string),
	}
}

// SeedBusiness registers a business profile.
func (s *Server) SeedBusiness(b BusinessDTO) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = &b
}

// SeedProduct registers a product with server-side stock.
func (s *Server) SeedProduct(p ProductDTO) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

// ProductStock returns the current server-side stock for a product.
func (s *Server) ProductStock(productID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		return p.StockQuantity
	}
	return 0
}

// SaleCount returns how many sales the server has accepted.
func (s *Server) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

// Handler returns the chi router for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.requireAuth)
		}
		r.Get("/businesses/{businessID}", s.getBusiness)
		r.Get("/businesses/{businessID}/sales", s.listSales)
		r.Post("/businesses/{businessID}/sales", s.createSale)
		r.Get("/businesses/{businessID}/products", s.listProducts)
		r.Post("/businesses/{businessID}/products", s.createProduct)
		r.Patch("/products/{productID}", s.patchProduct)
		r.Delete("/products/{productID}", s.deleteProduct)
		r.Post("/products/{productID}/stock-movements", s.createStockMovement)
		r.Get("/businesses/{businessID}/product-categories", s.listCategories)
		r.Post("/businesses/{businessID}/product-categories", s.createCategory)
		r.Patch("/product-categories/{categoryID}", s.patchCategory)
		r.Delete("/product-categories/{categoryID}", s.deleteCategory)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ClaimsFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := auth.WithIdentity(r.Context(), claims.BusinessID, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) getBusiness(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[chi.URLParam(r, "businessID")]
	if !ok {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SaleDTO
	for _, sl := range s.sales {
		if sl.BusinessID == businessID {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate > out[j].SaleDate })
	start := page * size
	if start > len(out) {
		start = len(out)
	}
	end := start + size
	if end > len(out) {
		end = len(out)
	}
	writeJSON(w, http.StatusOK, out[start:end])
}

func (s *Server) createSale(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	var req SaleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "sale requires at least one item")
		return
	}
	if req.CashierID == "" {
		if cashierID, ok := auth.CashierID(r.Context()); ok {
			req.CashierID = cashierID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replays carry the durable client request id; answer the original result.
	if reqID := r.Header.Get(HeaderRequestID); reqID != "" {
		if saleID, ok := s.seenReqIDs[reqID]; ok {
			for i := range s.sales {
				if s.sales[i].ID == saleID {
					writeJSON(w, http.StatusOK, s.sales[i])
					return
				}
			}
		}
	}

	items := make([]SaleItemDTO, 0, len(req.Items))
	for _, it := range req.Items {
		p, ok := s.products[it.ProductID]
		if !ok {
			writeError(w, http.StatusNotFound, "product not found: "+it.ProductID)
			return
		}
		if p.StockQuantity < it.Quantity {
			writeError(w, http.StatusConflict, "insufficient stock for "+p.Name)
			return
		}
		items = append(items, SaleItemDTO{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
		})
	}
	for _, it := range req.Items {
		s.products[it.ProductID].StockQuantity -= it.Quantity
	}

	total, tax := SaleTotals(items)
	sale := SaleDTO{
		ID:          uuid.New().String(),
		BusinessID:  businessID,
		CashierID:   req.CashierID,
		SaleDate:    time.Now().UTC().Format(time.RFC3339),
		Items:       items,
		TotalAmount: total,
		TaxAmount:   tax,
		Method:      req.Method,
	}
	sale.ReceiptNumber = FinalReceiptNumber(sale.ID)
	s.sales = append(s.sales, sale)
	if reqID := r.Header.Get(HeaderRequestID); reqID != "" {
		s.seenReqIDs[reqID] = sale.ID
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProductDTO, 0)
	for _, p := range s.products {
		if p.BusinessID == businessID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	var req ProductCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "product name required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if reqID := r.Header.Get(HeaderRequestID); reqID != "" {
		if id, ok := s.seenReqIDs[reqID]; ok {
			if p, ok := s.products[id]; ok {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
	}
	p := &ProductDTO{
		ID:            uuid.New().String(),
		BusinessID:    businessID,
		Name:          req.Name,
		Reference:     req.Reference,
		Price:         req.Price,
		TaxRate:       req.TaxRate,
		CategoryID:    req.CategoryID,
		StockQuantity: req.InitialQuantity,
	}
	s.products[p.ID] = p
	if reqID := r.Header.Get(HeaderRequestID); reqID != "" {
		s.seenReqIDs[reqID] = p.ID
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) patchProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	var req ProductPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Reference != nil {
		p.Reference = *req.Reference
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.TaxRate != nil {
		p.TaxRate = *req.TaxRate
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	delete(s.products, productID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createStockMovement(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	var req StockMovementCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid stock movement body")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	switch req.Type {
	case MovementIn:
		p.StockQuantity += req.Quantity
	case MovementOut, MovementSale:
		if p.StockQuantity < req.Quantity {
			writeError(w, http.StatusConflict, "insufficient stock for "+p.Name)
			return
		}
		p.StockQuantity -= req.Quantity
	default:
		writeError(w, http.StatusBadRequest, "unknown movement type: "+req.Type)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        uuid.New().String(),
		"productId": productID,
		"quantity":  req.Quantity,
		"type":      req.Type,
	})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CategoryDTO, 0)
	for _, c := range s.categories {
		if c.BusinessID == businessID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	var req CategoryChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "category name required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &CategoryDTO{ID: uuid.New().String(), BusinessID: businessID, Name: req.Name}
	s.categories[c.ID] = c
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) patchCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")
	var req CategoryChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "category name required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	c.Name = req.Name
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	delete(s.categories, categoryID)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}
