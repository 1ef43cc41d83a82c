package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pelyams/cached_product_service/internal/domain"
	"github.com/pelyams/cached_product_service/internal/ports"
)

const (
	readyTimeout = 1 * time.Second
	maxPageSize  = 1000
)

type ProductHandler struct {
	svc ports.ResourceService
	log *zap.Logger
}

func NewProductHandler(svc ports.ResourceService, log *zap.Logger) *ProductHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductHandler{
		svc: svc,
		log: log,
	}
}

func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	offset := r.URL.Query().Get("offset")
	limit := r.URL.Query().Get("limit")

	// pagination only when both parameters are present
	if offset != "" && limit != "" {
		offsetInt, err := parseAndValidate(offset, 0, "offset")
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		limitInt, err := parseAndValidate(limit, 1, "limit")
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		if limitInt > maxPageSize {
			h.badRequest(w, r, fmt.Errorf("%w: invalid limit: has value %d, must be le %d",
				domain.ErrInvalidInput, limitInt, maxPageSize))
			return
		}
		products, err := h.svc.GetProductsPaged(r.Context(), limitInt, offsetInt)
		if err != nil {
			h.serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
		return
	}

	products, err := h.svc.GetAllProducts(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, err := decodeProduct(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) GetProductById(w http.ResponseWriter, r *http.Request) {
	id, err := parseAndValidate(chi.URLParam(r, "id"), 1, "product id")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	product, err := h.svc.GetProductById(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseAndValidate(chi.URLParam(r, "id"), 1, "product id")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	req, err := decodeProduct(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	product, err := h.svc.UpdateProductById(r.Context(), id, req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseAndValidate(chi.URLParam(r, "id"), 1, "product id")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	deleted, err := h.svc.DeleteProductById(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (h *ProductHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deletedRows, err := h.svc.DeleteAllProducts(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	deletedCount := struct {
		DeletedRows int64 `json:"deletedRows"`
	}{
		DeletedRows: deletedRows,
	}
	writeJSON(w, http.StatusOK, deletedCount)
}

func (h *ProductHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.svc.Ready(ctx); err != nil {
		h.log.Warn("readyz failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *ProductHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Debug("rejected request", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, r, http.StatusBadRequest, err.Error())
}

func (h *ProductHandler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Product not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		h.log.Error("record store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "Service unavailable")
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeProduct(r *http.Request) (domain.NewProduct, error) {
	var req domain.NewProduct
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return domain.NewProduct{}, fmt.Errorf("%w: failed to decode payload: %s", domain.ErrInvalidInput, err.Error())
	}
	switch {
	case req.Name == "" || req.Brand == "":
		return domain.NewProduct{}, fmt.Errorf("%w: product name or brand is empty", domain.ErrInvalidInput)
	case req.Amount < 0:
		return domain.NewProduct{}, fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	}
	return req, nil
}

func parseAndValidate(s string, lb int64, name string) (int64, error) {
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrInvalidInput, name)
	}
	if value < lb {
		return 0, fmt.Errorf("%w: invalid %s: has value %d, must be ge %d", domain.ErrInvalidInput, name, value, lb)
	}
	return value, nil
}
