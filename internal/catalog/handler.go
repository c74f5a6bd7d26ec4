package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Store interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id string, u ProductUpdate) (*domain.Product, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	products, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.logger.Debug("products listed", "count", len(products), "total", total)
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": pagination{Page: filter.Page, Limit: filter.Limit, Total: total},
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, h.logger, domain.NotFound("Product"))
		return
	}

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{"product": product})
}

type productRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	CategoryID  *string          `json:"categoryId"`
	ImageURL    *string          `json:"imageUrl"`
}

// maxPrice is the largest value products.price (NUMERIC(10,2)) holds.
var maxPrice = decimal.RequireFromString("99999999.99")

func (req productRequest) validate() error {
	if req.Name != nil && *req.Name == "" {
		return domain.Invalid("Product name is required")
	}
	if req.Price != nil {
		switch {
		case req.Price.IsNegative():
			return domain.Invalid("Price must be a non-negative number")
		case !req.Price.Equal(req.Price.Round(2)):
			return domain.Invalid("Price must have at most two decimal places")
		case req.Price.GreaterThan(maxPrice):
			return domain.Invalid("Price is out of range")
		}
	}
	if req.Stock != nil && *req.Stock < 0 {
		return domain.Invalid("Stock must be a non-negative integer")
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		if _, err := uuid.Parse(*req.CategoryID); err != nil {
			return domain.Invalid("Invalid category id")
		}
	}
	return nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == nil || req.Price == nil || req.Stock == nil {
		respond.Error(w, h.logger, domain.Invalid("name, price and stock are required"))
		return
	}
	if err := req.validate(); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	product := &domain.Product{
		Name:     *req.Name,
		Price:    *req.Price,
		Stock:    *req.Stock,
		ImageURL: req.ImageURL,
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		product.CategoryID = req.CategoryID
	}

	if err := h.store.Create(r.Context(), product); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.logger.Info("product created", "product_id", product.ID)
	respond.JSON(w, h.logger, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": product,
	})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, h.logger, domain.NotFound("Product"))
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	product, err := h.store.Update(r.Context(), id, ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": product,
	})
}

func parseFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	f := domain.ProductFilter{
		Search:     q.Get("search"),
		CategoryID: q.Get("categoryId"),
		Page:       1,
		Limit:      defaultPageSize,
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return f, domain.Invalid("page must be a positive integer")
		}
		f.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return f, domain.Invalid("limit must be a positive integer")
		}
		f.Limit = min(limit, maxPageSize)
	}
	if f.CategoryID != "" {
		if _, err := uuid.Parse(f.CategoryID); err != nil {
			return f, domain.Invalid("Invalid category id")
		}
	}

	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		price, err := decimal.NewFromString(v)
		if err != nil {
			return f, domain.Invalid(key + " must be a number")
		}
		*dst = &price
	}

	return f, nil
}
