package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustmecro/trust-service/internal/repository"
	"github.com/trustmecro/trust-service/internal/service"
	"github.com/trustmecro/trust-service/pkg/httputil"
	"github.com/trustmecro/trust-service/pkg/middleware"
	"github.com/trustmecro/trust-service/pkg/pagination"
	"github.com/trustmecro/trust-service/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for listing a product.
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=255"`
	Description string   `json:"description" validate:"max=10000"`
	Brand       string   `json:"brand" validate:"max=255"`
	Category    string   `json:"category" validate:"required,max=100"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Images      []string `json:"images" validate:"max=10,dive,url"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := repository.ProductFilter{Category: r.URL.Query().Get("category")}
	h.list(w, r, filter)
}

// ListByCategory handles GET /api/v1/products/category/{category}
func (h *ProductHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	filter := repository.ProductFilter{Category: chi.URLParam(r, "category")}
	h.list(w, r, filter)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, filter repository.ProductFilter) {
	result, err := h.service.List(r.Context(), filter, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// GetSeller handles GET /api/v1/products/{id}/seller
func (h *ProductHandler) GetSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	seller, err := h.service.Seller(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, seller)
}

// CreateProduct handles POST /api/v1/products. The listing is analyzed
// before it is stored; a failed analysis still creates the product.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), service.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Brand:       req.Brand,
		Category:    req.Category,
		Price:       *req.Price,
		Images:      req.Images,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}
