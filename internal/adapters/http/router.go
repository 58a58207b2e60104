package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/observability/metrics"
)

const (
	metricsService     = "docflow-api"
	backpressureWait   = 250 * time.Millisecond
	defaultCancelActor = "api"
	multipartMemory    = 8 << 20
)

// StreamServer upgrades a request to a push channel for one document.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, documentID string) error
}

type Dependencies struct {
	Submitter ports.DocumentSubmitter
	Reviews   ports.ReviewSubmitter
	Canceller ports.DocumentCanceller
	Status    ports.StatusReader
	Stream    StreamServer
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg     config.Config
	deps    Dependencies
	handler http.Handler
}

func NewRouter(cfg config.Config, deps Dependencies) (*Router, error) {
	validator, err := loadOpenAPIRouter(context.Background())
	if err != nil {
		return nil, err
	}
	rt := &Router{cfg: cfg, deps: deps}

	r := chi.NewRouter()
	r.Get("/healthz", rt.healthz)
	r.Get("/openapi.yaml", rt.openAPI)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Get("/v1/documents/{id}/stream", rt.stream)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, cfg.APIMaxInFlight, backpressureWait)
		})
		r.Use(func(next http.Handler) http.Handler {
			return openAPIValidationMiddleware(validator, next)
		})

		r.Post("/v1/documents", rt.uploadDocument)
		r.Post("/v1/documents/text", rt.submitText)
		r.Get("/v1/documents/{id}", rt.getStatus)
		r.Get("/v1/documents/{id}/results", rt.getResults)
		r.Get("/v1/documents/{id}/audit", rt.getAudit)
		r.Get("/v1/documents/{id}/review", rt.getReviewContext)
		r.Post("/v1/documents/{id}/review", rt.submitReview)
		r.Post("/v1/documents/{id}/cancel", rt.cancelDocument)
		r.Get("/v1/reviews", rt.listPendingReviews)
	})

	var handler http.Handler = r
	if deps.Metrics != nil {
		handler = deps.Metrics.Middleware(metricsService, handler)
	}
	rt.handler = requestIDMiddleware(accessLogMiddleware(handler))
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	return rt.handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	state, err := rt.deps.Submitter.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordSubmission(state)
	writeJSON(w, http.StatusAccepted, domain.NewStatusView(state))
}

func (rt *Router) submitText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	state, err := rt.deps.Submitter.SubmitText(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordSubmission(state)
	writeJSON(w, http.StatusAccepted, domain.NewStatusView(state))
}

func (rt *Router) getStatus(w http.ResponseWriter, r *http.Request) {
	view, err := rt.deps.Status.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) getResults(w http.ResponseWriter, r *http.Request) {
	view, err := rt.deps.Status.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) getAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := rt.deps.Status.Audit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "entries": entries})
}

func (rt *Router) getReviewContext(w http.ResponseWriter, r *http.Request) {
	review, err := rt.deps.Status.ReviewContext(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (rt *Router) submitReview(w http.ResponseWriter, r *http.Request) {
	var sub domain.ReviewSubmission
	if err := decodeJSON(r.Body, &sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	state, err := rt.deps.Reviews.Submit(r.Context(), chi.URLParam(r, "id"), sub)
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordReviewSubmission(metricsService, string(sub.Decision), err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.NewStatusView(state))
}

func (rt *Router) cancelDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Actor) == "" {
		req.Actor = defaultCancelActor
	}

	state, err := rt.deps.Canceller.Cancel(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason)
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordCancellation(metricsService, err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, domain.NewStatusView(state))
}

func (rt *Router) listPendingReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	items, err := rt.deps.Status.PendingReviews(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (rt *Router) stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if rt.deps.Stream == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "streaming is not enabled"})
		return
	}
	if _, err := rt.deps.Status.Status(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.deps.Stream.Serve(w, r, id); err != nil {
		slog.Warn("stream_failed", "request_id", requestIDFromContext(r.Context()), "document_id", id, "error", err)
	}
}

func (rt *Router) recordSubmission(state *domain.DocumentState) {
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordSubmission(metricsService, state.Source.FileType)
	}
}

func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	return decoder.Decode(dst)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": domain.ErrorCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
