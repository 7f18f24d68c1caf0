// Package http is the HTTP delivery layer: link creation, redirects and
// click stats over chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/service"
	"shortlink/pkg/problemdetails"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LinkCreator is the creation-side service contract.
type LinkCreator interface {
	Create(ctx context.Context, in service.CreateInput) (*domain.ShortLink, error)
	Stats(ctx context.Context, code string) (*service.ClickStats, error)
}

// LinkResolver maps codes to destination URLs.
type LinkResolver interface {
	Resolve(ctx context.Context, code string, raw domain.RawRequest) (string, error)
}

// Handler serves the link API.
type Handler struct {
	links    LinkCreator
	resolver LinkResolver
	baseURL  string
	log      *zap.Logger
}

// NewHandler creates a Handler. baseURL is used to build absolute short
// URLs in responses.
func NewHandler(links LinkCreator, resolver LinkResolver, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		links:    links,
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      logger,
	}
}

// CreateRequest is the body of POST /api/v1/urls.
type CreateRequest struct {
	OriginalURL string     `json:"original_url"`
	OwnerID     *string    `json:"owner_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
}

// LinkResponse is the wire form of a created link.
type LinkResponse struct {
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Create handles POST /api/v1/urls.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problemdetails.New(http.StatusBadRequest, problemdetails.TypeInvalidRequest,
			"Invalid Request", "request body must be JSON with 'original_url'").Write(w)
		return
	}

	link, err := h.links.Create(r.Context(), service.CreateInput{
		URL:       req.OriginalURL,
		OwnerID:   req.OwnerID,
		ExpiresAt: req.ExpiresAt,
		MaxClicks: req.MaxClicks,
	})
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, LinkResponse{
		Code:        link.Code,
		ShortURL:    h.baseURL + "/" + link.Code,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
		MaxClicks:   link.MaxClicks,
		CreatedAt:   link.CreatedAt,
	})
}

func (h *Handler) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		problemdetails.New(http.StatusBadRequest, problemdetails.TypeInvalidURL,
			"Invalid URL", "original_url must be an absolute http(s) URL").Write(w)
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		h.log.Error("code space exhausted", zap.Error(err))
		problemdetails.New(http.StatusServiceUnavailable, problemdetails.TypeCodeExhausted,
			"Code Space Exhausted", "no unique short code available, try again later").Write(w)
	default:
		h.log.Error("create link failed", zap.Error(err))
		problemdetails.Internal().Write(w)
	}
}

// Redirect handles GET /{code}. Telemetry rides on the enqueued click
// job; the redirect itself never waits for it.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	url, err := h.resolver.Resolve(r.Context(), code, rawRequest(r))
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			problemdetails.NotFound("short link not found: " + code).Write(w)
			return
		}
		h.log.Error("resolve failed", zap.String("code", code), zap.Error(err))
		problemdetails.Internal().Write(w)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Stats handles GET /api/v1/urls/{code}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	stats, err := h.links.Stats(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			problemdetails.NotFound("short link not found: " + code).Write(w)
			return
		}
		h.log.Error("stats failed", zap.String("code", code), zap.Error(err))
		problemdetails.Internal().Write(w)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// rawRequest flattens the HTTP request into the transport-agnostic bundle
// the analytics extractor consumes. Header keys are lower-cased;
// multi-valued entries keep their first value.
func rawRequest(r *http.Request) domain.RawRequest {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}

	return domain.RawRequest{
		Method:  r.Method,
		Headers: headers,
		IP:      ip,
		Query:   query,
		Cookies: cookies,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
