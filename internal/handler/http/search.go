package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront-search/internal/query"
	"github.com/utafrali/storefront-search/internal/service"
	"github.com/utafrali/storefront-search/pkg/httputil"
	"github.com/utafrali/storefront-search/pkg/logger"
	"github.com/utafrali/storefront-search/pkg/middleware"
	"github.com/utafrali/storefront-search/pkg/validator"
)

// statusClientClosedRequest is recorded when the shopper went away before
// the search finished. Nobody reads the body.
const statusClientClosedRequest = 499

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
	live    LiveConfig
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger, live LiveConfig) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
		live:    live.withDefaults(),
	}
}

func metaFrom(r *http.Request, searchType string) service.Meta {
	ctx := r.Context()
	return service.Meta{
		SessionID:  middleware.SessionIDFromContext(ctx),
		UserID:     middleware.UserIDFromContext(ctx),
		Location:   middleware.LocationFromContext(ctx),
		SearchType: searchType,
	}
}

// writeServiceError writes err, except for a cancelled request which only
// gets a status line.
func (h *SearchHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrCancelled) {
		logger.FromContext(r.Context()).DebugContext(r.Context(), "request cancelled by client",
			slog.String("path", r.URL.Path),
		)
		w.WriteHeader(statusClientClosedRequest)
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Search(r.Context(), query.FromValues(r.URL.Query()), metaFrom(r, ""))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, resp)
}

// Suggest handles GET /api/v1/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	partial := strings.TrimSpace(r.URL.Query().Get("q"))

	suggestions, err := h.service.Suggest(r.Context(), partial, metaFrom(r, ""))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// Trending handles GET /api/v1/search/trending
func (h *SearchHandler) Trending(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, map[string]any{"trending": h.service.Trending(r.Context())})
}

// History handles GET /api/v1/search/history
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, map[string]any{"history": h.service.History(r.Context(), metaFrom(r, ""))})
}

// ClearHistory handles DELETE /api/v1/search/history
func (h *SearchHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context(), metaFrom(r, "")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Click handles POST /api/v1/search/click
func (h *SearchHandler) Click(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)

	var req service.ClickInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.service.TrackClick(r.Context(), &req, metaFrom(r, "")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
