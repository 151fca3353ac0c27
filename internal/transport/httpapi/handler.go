// Package httpapi is the local JSON API over the decision pipeline.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/OneInX/Manifest-InX/internal/canon"
	"github.com/OneInX/Manifest-InX/internal/gate"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/release"
)

// MaxBodyBytes bounds POST /insight request bodies.
const MaxBodyBytes = 1 << 20

// Error codes returned as {"error": code}.
const (
	ErrNotFound         = "not_found"
	ErrBadJSON          = "bad_json"
	ErrMissingText      = "missing_text"
	ErrReleaseIntegrity = "release_integrity"
	ErrEngine           = "engine_error"
)

// Service is the decision pipeline. *pipeline.Engine satisfies it.
type Service interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Version() string
}

// #region wire

// Wire structs declare fields in key order so responses are sorted.

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type manifestInfo struct {
	HashOK  bool   `json:"hash_ok"`
	Version string `json:"version"`
}

type insightResponse struct {
	Manifest   manifestInfo `json:"manifest"`
	OutputText string       `json:"output_text"`
	SDT        gate.Result  `json:"sdt"`
	TemplateID string       `json:"template_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// #endregion wire

// #region handler

// Handler wires the API endpoints to the pipeline.
type Handler struct {
	service  Service
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// New constructs a handler. gatherer may be nil to disable /metrics.
func New(service Service, logger *zap.Logger, gatherer prometheus.Gatherer) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:  service,
		logger:   logger,
		gatherer: gatherer,
	}
}

// Register mounts the API endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Post("/insight", h.HandleInsight)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// NewRouter returns a router with every endpoint mounted. Unknown paths and
// wrong methods both answer 404 not_found.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.notFound)
	h.Register(r)
	return r
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: h.service.Version()})
}

// HandleInsight handles POST /insight.
func (h *Handler) HandleInsight(w http.ResponseWriter, r *http.Request) {
	req, code := decodeInsight(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	res, err := h.service.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, release.ErrIntegrity) {
			writeError(w, http.StatusServiceUnavailable, ErrReleaseIntegrity)
			return
		}
		h.logger.Error("insight failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrEngine)
		return
	}

	writeJSON(w, http.StatusOK, insightResponse{
		Manifest:   manifestInfo{HashOK: true, Version: res.ManifestVersion},
		OutputText: res.OutputText,
		SDT:        res.SDT,
		TemplateID: res.TemplateID,
	})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrNotFound)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// #endregion handler

// #region codec

// decodeInsight returns the request or an error code. text must be a JSON
// string; lang and source are optional strings.
func decodeInsight(body io.Reader) (pipeline.Request, string) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return pipeline.Request{}, ErrBadJSON
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return pipeline.Request{}, ErrBadJSON
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return pipeline.Request{}, ErrMissingText
	}
	text, ok := obj["text"].(string)
	if !ok {
		return pipeline.Request{}, ErrMissingText
	}
	lang, _ := obj["lang"].(string)
	source, _ := obj["source"].(string)
	return pipeline.Request{Text: text, Lang: lang, Source: source}, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := canon.Compact(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"` + ErrEngine + `"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// #endregion codec
