package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront-search/internal/service"
	"github.com/utafrali/storefront-search/pkg/httputil"
	"github.com/utafrali/storefront-search/pkg/validator"
)

// reindexTimeout bounds a background reindex started over HTTP.
const reindexTimeout = 15 * time.Minute

// BulkIndexRequest is the JSON request body for bulk indexing products.
type BulkIndexRequest struct {
	Products []service.IndexProductInput `json:"products" validate:"required,min=1,max=500"`
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

func writeUnsupportedMedia(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
	})
}

func writeBadBody(w http.ResponseWriter, err error) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
	})
}

// IndexProduct handles POST /api/v1/search/index
func (h *SearchHandler) IndexProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req service.IndexProductInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.service.IndexProduct(r.Context(), &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"id": req.ID, "status": "indexed"})
}

// DeleteProduct handles DELETE /api/v1/search/{id}
func (h *SearchHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// BulkIndex handles POST /api/v1/search/bulk
func (h *SearchHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req BulkIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	n, err := h.service.BulkIndex(r.Context(), req.Products)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]any{
		"indexed": n,
		"skipped": len(req.Products) - n,
		"status":  "ok",
	})
}

// Reindex handles POST /api/v1/search/reindex. The reindex runs in the
// background; the response only acknowledges it.
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, reindexTimeout)
		defer cancel()
		if _, err := h.service.Reindex(ctx); err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", slog.String("error", err.Error()))
		}
	}()

	httputil.WriteData(w, http.StatusAccepted, map[string]string{"status": "reindex started"})
}
