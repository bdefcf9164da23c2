package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/service"
	"github.com/rs/zerolog"
)

// Catalog is the part of service.CatalogService the handlers use.
type Catalog interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListItems(ctx context.Context, category string, page, pageSize int) ([]domain.Item, error)
	CountItems(ctx context.Context, category string) (int, error)
	SearchItems(ctx context.Context, query string, page, pageSize int) ([]domain.Item, error)
	CountSearchItems(ctx context.Context, query string) (int, error)
	GetItem(ctx context.Context, id int64) (domain.Item, bool, error)
	GetRelatedItems(ctx context.Context, excludeID int64) ([]domain.Item, error)
	AddReview(ctx context.Context, itemID int64, text, author string, stars int) (domain.Item, error)
}

type CatalogHandler struct {
	catalog  Catalog
	pageSize int
	logger   zerolog.Logger
}

func NewCatalogHandler(catalog Catalog, pageSize int, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		pageSize: pageSize,
		logger:   logger,
	}
}

type ItemPageResponse struct {
	Items      []domain.Item     `json:"items"`
	ItemCount  int               `json:"itemCount"`
	Pages      int               `json:"pages"`
	Page       int               `json:"page"`
	Category   string            `json:"category,omitempty"`
	Query      string            `json:"query,omitempty"`
	Categories []domain.Category `json:"categories,omitempty"`
}

type ItemDetailResponse struct {
	Item    domain.Item   `json:"item"`
	Rating  domain.Rating `json:"rating"`
	Related []domain.Item `json:"related,omitempty"`
}

type AddReviewRequestDTO struct {
	Name   string `json:"name"`
	Review string `json:"review"`
	Stars  int    `json:"stars"`
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusOK, categories)
}

func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, ok := pageParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_page", "page must be an integer", "page")
		return
	}
	category := r.URL.Query().Get("category")
	if strings.TrimSpace(category) == "" {
		category = domain.AllCategories
	}

	items, err := h.catalog.ListItems(ctx, category, page, h.pageSize)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	count, err := h.catalog.CountItems(ctx, category)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, r, http.StatusOK, ItemPageResponse{
		Items:      items,
		ItemCount:  count,
		Pages:      service.ComputeNumPages(count, h.pageSize),
		Page:       page,
		Category:   category,
		Categories: categories,
	})
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, ok := pageParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_page", "page must be an integer", "page")
		return
	}
	query := r.URL.Query().Get("query")

	items, err := h.catalog.SearchItems(ctx, query, page, h.pageSize)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	count, err := h.catalog.CountSearchItems(ctx, query)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, r, http.StatusOK, ItemPageResponse{
		Items:     items,
		ItemCount: count,
		Pages:     service.ComputeNumPages(count, h.pageSize),
		Page:      page,
		Query:     query,
	})
}

func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_item_id", "itemID must be a positive integer", "itemID")
		return
	}

	item, found, err := h.catalog.GetItem(ctx, itemID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if !found {
		respondError(w, r, http.StatusNotFound, "not_found", "item not found", "")
		return
	}

	related, err := h.catalog.GetRelatedItems(ctx, itemID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, r, http.StatusOK, ItemDetailResponse{
		Item:    item,
		Rating:  service.ComputeAggregateRating(item),
		Related: related,
	})
}

func (h *CatalogHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_item_id", "itemID must be a positive integer", "itemID")
		return
	}

	var req AddReviewRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", "")
		return
	}

	item, err := h.catalog.AddReview(r.Context(), itemID, req.Review, req.Name, req.Stars)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, ItemDetailResponse{
		Item:   item,
		Rating: service.ComputeAggregateRating(item),
	})
}
