package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"github.com/utafrali/storefront-search/internal/analytics"
	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/query"
	"github.com/utafrali/storefront-search/internal/session"
	apperrors "github.com/utafrali/storefront-search/pkg/errors"
	"github.com/utafrali/storefront-search/pkg/httputil"
	"github.com/utafrali/storefront-search/pkg/logger"
	"github.com/utafrali/storefront-search/pkg/validator"
)

// Live message types.
const (
	msgSearch      = "search"
	msgSuggest     = "suggest"
	msgCancel      = "cancel"
	msgResults     = "results"
	msgSuggestions = "suggestions"
	msgError       = "error"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveMaxMessage = 16 << 10
)

// LiveConfig holds the debounce delays of the live endpoint.
type LiveConfig struct {
	SearchDebounce  time.Duration
	SuggestDebounce time.Duration
}

func (c LiveConfig) withDefaults() LiveConfig {
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = session.SearchDebounce
	}
	if c.SuggestDebounce <= 0 {
		c.SuggestDebounce = session.SuggestDebounce
	}
	return c
}

// liveRequest is a client message. Query uses the URL parameter names.
type liveRequest struct {
	Type  string    `json:"type"`
	Query query.Raw `json:"query"`
}

// liveResponse is a server message.
type liveResponse struct {
	Type  string                  `json:"type"`
	Seq   uint64                  `json:"seq"`
	Data  any                     `json:"data,omitempty"`
	Error *httputil.ErrorResponse `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are enforced by the CORS middleware configuration.
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveConn serializes writes; both debounce sessions deliver from their own
// goroutines.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *liveConn) send(msg liveResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

// Live handles GET /api/v1/search/live. Every "search" or "suggest" message
// restarts that kind's debounce; only the latest message of each kind is
// answered.
func (h *SearchHandler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.DebugContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	log := logger.FromContext(ctx)
	tag := validator.MatchLanguage(r.Header.Get("Accept-Language"))
	lc := &liveConn{conn: conn}
	meta := metaFrom(r, analytics.SearchTypeLive)

	onError := func(seq uint64, err error) {
		if sendErr := lc.send(liveResponse{Type: msgError, Seq: seq, Error: errorBody(err, tag)}); sendErr != nil {
			log.DebugContext(ctx, "live write failed", slog.String("error", sendErr.Error()))
		}
	}

	searches := session.New(ctx, msgSearch, h.live.SearchDebounce, func(res session.Result[*domain.SearchResponse]) {
		if res.Err != nil {
			onError(res.Seq, res.Err)
			return
		}
		if err := lc.send(liveResponse{Type: msgResults, Seq: res.Seq, Data: res.Value}); err != nil {
			log.DebugContext(ctx, "live write failed", slog.String("error", err.Error()))
		}
	}, log)
	defer searches.Close()

	suggestions := session.New(ctx, msgSuggest, h.live.SuggestDebounce, func(res session.Result[[]domain.Suggestion]) {
		if res.Err != nil {
			onError(res.Seq, res.Err)
			return
		}
		if err := lc.send(liveResponse{Type: msgSuggestions, Seq: res.Seq, Data: res.Value}); err != nil {
			log.DebugContext(ctx, "live write failed", slog.String("error", err.Error()))
		}
	}, log)
	defer suggestions.Close()

	conn.SetReadLimit(liveMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	go func() {
		ticker := time.NewTicker(livePingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.DebugContext(ctx, "live connection closed", slog.String("error", err.Error()))
			}
			return
		}

		var req liveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			onError(0, apperrors.InvalidInput("malformed message: "+err.Error()))
			continue
		}

		switch req.Type {
		case msgSearch:
			raw := req.Query
			searches.Submit(func(ctx context.Context) (*domain.SearchResponse, error) {
				return h.service.Search(ctx, raw, meta)
			})
		case msgSuggest:
			partial := req.Query.Q
			suggestions.Submit(func(ctx context.Context) ([]domain.Suggestion, error) {
				return h.service.Suggest(ctx, partial, meta)
			})
		case msgCancel:
			searches.Cancel()
			suggestions.Cancel()
		default:
			onError(0, apperrors.InvalidInput("unknown message type "+req.Type))
		}
	}
}

// errorBody renders err the way the JSON error envelope does.
func errorBody(err error, tag language.Tag) *httputil.ErrorResponse {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return &httputil.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: validator.Translate(tag, validator.MsgRequestFailed),
			Fields:  valErr.Localized(tag),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && (appErr.Status < http.StatusInternalServerError || appErr.Retryable) {
		return &httputil.ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Fields:    appErr.Fields,
			Retryable: appErr.Retryable,
		}
	}
	return &httputil.ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}
