// Package chi exposes ingestion and querying over HTTP with a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/shortlist/internal/logger"
	"github.com/kailas-cloud/shortlist/internal/metrics"
	healthuc "github.com/kailas-cloud/shortlist/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/shortlist/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
)

const (
	defaultMaxUploadBytes = 64 << 20
	// multipart parts above this stay on disk until read
	multipartMemory = 8 << 20
)

// Ingester builds, rescores and clears pools.
type Ingester interface {
	Ingest(ctx context.Context, req ingestuc.Request) (ingestuc.Report, error)
	Rescore(ctx context.Context, poolID, jobDescription string) (ingestuc.Report, error)
	Clear(ctx context.Context, poolID string) error
}

// Querier answers questions over a pool.
type Querier interface {
	Query(ctx context.Context, req queryuc.Request) (queryuc.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API server.
type Server struct {
	ingest         Ingester
	query          Querier
	health         HealthChecker
	logger         *zap.Logger
	maxUploadBytes int64
	ingestTimeout  time.Duration
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingester, query Querier, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		ingest:         ingest,
		query:          query,
		health:         health,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes bounds request bodies.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// WithIngestWriteTimeout replaces the server-wide write timeout on ingestion
// routes, which download and embed whole batches. Zero removes the deadline.
func (s *Server) WithIngestWriteTimeout(d time.Duration) *Server {
	s.ingestTimeout = d
	return s
}

// Router builds the chi router with the middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.With(WriteDeadline(s.ingestTimeout)).Post("/pools/{pool}/ingest", s.IngestPool)
	r.Post("/pools/{pool}/query", s.QueryPool)
	r.Delete("/pools/{pool}", s.DeletePool)

	r.With(WriteDeadline(s.ingestTimeout)).Post("/api/prior_info", s.LegacyPriorInfo)
	r.Post("/api/prompt", s.LegacyPrompt)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// IngestDocument is an inline document in a JSON ingest request.
type IngestDocument struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// IngestRequest is the JSON body of POST /pools/{pool}/ingest.
type IngestRequest struct {
	JobDescription string           `json:"job_description"`
	URLs           []string         `json:"urls"`
	Documents      []IngestDocument `json:"documents"`
}

// QueryRequest is the JSON body of POST /pools/{pool}/query.
type QueryRequest struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// IngestPool handles POST /pools/{pool}/ingest. Accepts JSON or multipart/form-data
// with a job_description field and one or more "files" parts.
func (s *Server) IngestPool(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	req, err := s.decodeIngest(r)
	if err != nil {
		s.writeDecodeError(w, err)
		return
	}
	req.PoolID = chi.URLParam(r, "pool")

	report, err := s.ingest.Ingest(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) decodeIngest(r *http.Request) (ingestuc.Request, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return s.decodeMultipart(r)
	}

	var body IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ingestuc.Request{}, fmt.Errorf("invalid request body: %w", err)
	}

	req := ingestuc.Request{JobDescription: body.JobDescription}
	for _, d := range body.Documents {
		req.Documents = append(req.Documents, ingestuc.Document{Name: d.Name, Body: []byte(d.Text)})
	}
	for _, u := range body.URLs {
		req.Documents = append(req.Documents, ingestuc.Document{URL: u})
	}
	return req, nil
}

func (s *Server) decodeMultipart(r *http.Request) (ingestuc.Request, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return ingestuc.Request{}, fmt.Errorf("invalid multipart body: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := ingestuc.Request{JobDescription: r.FormValue("job_description")}
	for _, fh := range r.MultipartForm.File["files"] {
		body, err := readPart(fh)
		if err != nil {
			return ingestuc.Request{}, err
		}
		req.Documents = append(req.Documents, ingestuc.Document{Name: fh.Filename, Body: body})
	}
	for _, u := range r.MultipartForm.Value["urls"] {
		req.Documents = append(req.Documents, ingestuc.Document{URL: u})
	}
	return req, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", fh.Filename, err)
	}
	return body, nil
}

// QueryPool handles POST /pools/{pool}/query.
func (s *Server) QueryPool(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var body QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeDecodeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	res, err := s.query.Query(r.Context(), queryuc.Request{
		PoolID: chi.URLParam(r, "pool"),
		Text:   body.Query,
		Count:  body.Count,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeletePool handles DELETE /pools/{pool}.
func (s *Server) DeletePool(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Clear(r.Context(), chi.URLParam(r, "pool")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
}

// log prefers the request-scoped logger set by WideEventMiddleware.
func (s *Server) log(r *http.Request) *zap.Logger {
	if l := logpkg.FromContext(r.Context()); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return s.logger
}
