package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/usecase"
)

// ReadyCheck probes a backing dependency for the readiness endpoint.
type ReadyCheck func(ctx context.Context) error

type Handler struct {
	answer usecase.AnswerUsecase
	ingest usecase.IngestUsecase
	jobs   domain.JobRepository
	ready  ReadyCheck
	log    *slog.Logger
}

func NewHandler(
	answer usecase.AnswerUsecase,
	ingest usecase.IngestUsecase,
	jobs domain.JobRepository,
	ready ReadyCheck,
	log *slog.Logger,
) *Handler {
	return &Handler{
		answer: answer,
		ingest: ingest,
		jobs:   jobs,
		ready:  ready,
		log:    log,
	}
}

// Register mounts all routes. The given middleware guards the /v1 group only,
// so health probes stay outside contract validation.
func (h *Handler) Register(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)

	v1 := e.Group("/v1", mw...)
	v1.POST("/answer", h.Answer)
	v1.POST("/documents", h.SubmitDocument)
	v1.DELETE("/documents/:externalId", h.DeleteDocument)
	v1.GET("/jobs/:jobId", h.GetJob)
}

type AnswerRequest struct {
	Question string `json:"question"`
	History  string `json:"history,omitempty"`
	Mode     string `json:"mode,omitempty"`
	// Databases optionally restricts filter planning to the given database
	// schemas instead of everything the workspace lists.
	Databases []domain.DatabaseDescriptor `json:"databases,omitempty"`
}

type AnswerResponse struct {
	RunID      string            `json:"run_id"`
	Mode       string            `json:"mode"`
	Answer     string            `json:"answer"`
	Citations  []domain.Citation `json:"citations,omitempty"`
	NoContext  bool              `json:"no_context,omitempty"`
	Iterations int               `json:"iterations"`
	Documents  int               `json:"documents"`
}

type SubmitDocumentRequest struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
}

type SubmitDocumentResponse struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id,omitempty"`
	Enqueued   bool   `json:"enqueued"`
}

type JobResponse struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Answer runs one question through the pipeline.
// (POST /v1/answer)
func (h *Handler) Answer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required"})
	}

	mode := domain.ModeRetrieve
	if req.Mode != "" {
		parsed, ok := domain.ParseAnswerMode(req.Mode)
		if !ok {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown mode %q", req.Mode)})
		}
		mode = parsed
	}

	output, err := h.answer.Execute(c.Request().Context(), usecase.AnswerInput{
		Question:  req.Question,
		History:   req.History,
		Mode:      mode,
		Databases: req.Databases,
	})
	if err != nil {
		return h.errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, AnswerResponse{
		RunID:      output.RunID.String(),
		Mode:       string(output.Mode),
		Answer:     output.Answer,
		Citations:  output.Citations,
		NoContext:  output.NoContext,
		Iterations: output.Iterations,
		Documents:  output.Documents,
	})
}

// SubmitDocument stores a document and enqueues indexing. Resubmitting
// unchanged content returns 200 with enqueued=false instead of 202.
// (POST /v1/documents)
func (h *Handler) SubmitDocument(c echo.Context) error {
	var req SubmitDocumentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.ExternalID) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "external_id is required"})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
	}

	result, err := h.ingest.Submit(c.Request().Context(), usecase.DocumentInput{
		ExternalID: req.ExternalID,
		Title:      req.Title,
		Content:    req.Content,
	})
	if err != nil {
		return h.errorJSON(c, err)
	}

	resp := SubmitDocumentResponse{
		DocumentID: result.DocumentID.String(),
		Enqueued:   result.Enqueued,
	}
	status := http.StatusOK
	if result.Enqueued {
		resp.JobID = result.JobID.String()
		status = http.StatusAccepted
	}
	return c.JSON(status, resp)
}

// DeleteDocument tombstones a document and drops its chunks. Deleting an
// unknown document succeeds.
// (DELETE /v1/documents/:externalId)
func (h *Handler) DeleteDocument(c echo.Context) error {
	externalID := c.Param("externalId")
	if externalID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "external id is required"})
	}

	if err := h.ingest.Delete(c.Request().Context(), externalID); err != nil {
		return h.errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetJob reports one ingestion job's state.
// (GET /v1/jobs/:jobId)
func (h *Handler) GetJob(c echo.Context) error {
	id, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid job id"})
	}

	job, err := h.jobs.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.errorJSON(c, err)
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
	}

	return c.JSON(http.StatusOK, JobResponse{
		ID:         job.ID.String(),
		DocumentID: job.DocumentID.String(),
		Status:     string(job.Status),
		Attempts:   job.Attempts,
		LastError:  job.LastError,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	})
}

// (GET /healthz)
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// (GET /readyz)
func (h *Handler) Ready(c echo.Context) error {
	if h.ready != nil {
		if err := h.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// errorJSON maps the error taxonomy onto status codes: configuration
// failures are 503 (the feature is off, not broken), malformed model output
// is 502, deadline expiry is 504, everything else 500.
func (h *Handler) errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrMalformedOutput):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	h.log.ErrorContext(c.Request().Context(), "request failed",
		"path", c.Path(), "status", status, "error", err)
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}
