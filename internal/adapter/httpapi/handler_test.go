package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-orchestrator/internal/adapter/httpapi"
	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/usecase"
)

type stubAnswerUsecase struct {
	gotInput usecase.AnswerInput
	called   bool
	output   *usecase.AnswerOutput
	err      error
}

func (s *stubAnswerUsecase) Execute(ctx context.Context, input usecase.AnswerInput) (*usecase.AnswerOutput, error) {
	s.called = true
	s.gotInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

type stubIngestUsecase struct {
	gotSubmit    usecase.DocumentInput
	submitResult *usecase.SubmitResult
	submitErr    error
	deletedID    string
	deleteErr    error
}

func (s *stubIngestUsecase) Submit(ctx context.Context, input usecase.DocumentInput) (*usecase.SubmitResult, error) {
	s.gotSubmit = input
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.submitResult, nil
}

func (s *stubIngestUsecase) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	return nil
}

func (s *stubIngestUsecase) Delete(ctx context.Context, externalID string) error {
	s.deletedID = externalID
	return s.deleteErr
}

type stubJobs struct {
	job *domain.IngestJob
	err error
}

func (s *stubJobs) Enqueue(ctx context.Context, job *domain.IngestJob) error { return nil }
func (s *stubJobs) AcquireNext(ctx context.Context) (*domain.IngestJob, error) {
	return nil, nil
}
func (s *stubJobs) MarkDone(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubJobs) MarkFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	return nil
}
func (s *stubJobs) GetByID(ctx context.Context, id uuid.UUID) (*domain.IngestJob, error) {
	return s.job, s.err
}
func (s *stubJobs) RequeueFailed(ctx context.Context, limit int) (int, error) { return 0, nil }

func newHandler(answer *stubAnswerUsecase, ingest *stubIngestUsecase, jobs *stubJobs, ready httpapi.ReadyCheck) *httpapi.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpapi.NewHandler(answer, ingest, jobs, ready, log)
}

func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAnswer_ReturnsGroundedAnswer(t *testing.T) {
	e := echo.New()
	runID := uuid.New()
	answer := &stubAnswerUsecase{
		output: &usecase.AnswerOutput{
			RunID:  runID,
			Mode:   domain.ModeRetrieve,
			Answer: "The deploy froze on Friday.",
			Citations: []domain.Citation{
				{SourceID: "chunk-1", Quote: "deploys freeze on Fridays"},
			},
			Iterations: 1,
			Documents:  3,
		},
	}
	h := newHandler(answer, &stubIngestUsecase{}, &stubJobs{}, nil)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/answer",
		`{"question":"why did the deploy freeze?","history":"earlier turns","mode":"retrieve"}`)

	require.NoError(t, h.Answer(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httpapi.AnswerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, runID.String(), resp.RunID)
	assert.Equal(t, "retrieve", resp.Mode)
	assert.Equal(t, "The deploy froze on Friday.", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "chunk-1", resp.Citations[0].SourceID)
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, 3, resp.Documents)

	assert.Equal(t, "why did the deploy freeze?", answer.gotInput.Question)
	assert.Equal(t, "earlier turns", answer.gotInput.History)
	assert.Equal(t, domain.ModeRetrieve, answer.gotInput.Mode)
}

func TestAnswer_DefaultsToRetrieveMode(t *testing.T) {
	e := echo.New()
	answer := &stubAnswerUsecase{output: &usecase.AnswerOutput{Mode: domain.ModeRetrieve}}
	h := newHandler(answer, &stubIngestUsecase{}, &stubJobs{}, nil)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/answer", `{"question":"hello"}`)

	require.NoError(t, h.Answer(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ModeRetrieve, answer.gotInput.Mode)
}

func TestAnswer_ForwardsRequestDatabases(t *testing.T) {
	e := echo.New()
	answer := &stubAnswerUsecase{output: &usecase.AnswerOutput{Mode: domain.ModeRetrieve}}
	h := newHandler(answer, &stubIngestUsecase{}, &stubJobs{}, nil)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/answer",
		`{"question":"open tasks?","databases":[{"id":"db-tasks","name":"Tasks","fields":[{"id":"f-status","name":"Status","type":"select"}]}]}`)

	require.NoError(t, h.Answer(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, answer.gotInput.Databases, 1)
	assert.Equal(t, "db-tasks", answer.gotInput.Databases[0].ID)
	require.Len(t, answer.gotInput.Databases[0].Fields, 1)
	assert.Equal(t, "f-status", answer.gotInput.Databases[0].Fields[0].ID)
}

func TestAnswer_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing question", body: `{"history":"hi"}`},
		{name: "blank question", body: `{"question":"   "}`},
		{name: "unknown mode", body: `{"question":"hi","mode":"turbo"}`},
		{name: "not json", body: `question=hi`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			answer := &stubAnswerUsecase{}
			h := newHandler(answer, &stubIngestUsecase{}, &stubJobs{}, nil)

			c, rec := newJSONContext(e, http.MethodPost, "/v1/answer", tt.body)

			require.NoError(t, h.Answer(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, answer.called)
		})
	}
}

func TestAnswer_MapsErrorTaxonomyToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "assistant disabled", err: domain.ErrAIDisabled, wantStatus: http.StatusServiceUnavailable},
		{name: "provider disabled", err: fmt.Errorf("select model: %w", domain.ErrProviderDisabled), wantStatus: http.StatusServiceUnavailable},
		{name: "malformed output", err: fmt.Errorf("parse answer: %w", domain.ErrMalformedOutput), wantStatus: http.StatusBadGateway},
		{name: "stage timeout", err: domain.ErrTimeout, wantStatus: http.StatusGatewayTimeout},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
		{name: "anything else", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			h := newHandler(&stubAnswerUsecase{err: tt.err}, &stubIngestUsecase{}, &stubJobs{}, nil)

			c, rec := newJSONContext(e, http.MethodPost, "/v1/answer", `{"question":"hi"}`)

			require.NoError(t, h.Answer(c))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp httpapi.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSubmitDocument_EnqueuesJob(t *testing.T) {
	e := echo.New()
	docID := uuid.New()
	jobID := uuid.New()
	ingest := &stubIngestUsecase{
		submitResult: &usecase.SubmitResult{DocumentID: docID, JobID: jobID, Enqueued: true},
	}
	h := newHandler(&stubAnswerUsecase{}, ingest, &stubJobs{}, nil)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/documents",
		`{"external_id":"notion-page-7","title":"Runbook","content":"Restart the ingest worker first."}`)

	require.NoError(t, h.SubmitDocument(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp httpapi.SubmitDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, docID.String(), resp.DocumentID)
	assert.Equal(t, jobID.String(), resp.JobID)
	assert.True(t, resp.Enqueued)

	assert.Equal(t, "notion-page-7", ingest.gotSubmit.ExternalID)
	assert.Equal(t, "Runbook", ingest.gotSubmit.Title)
}

func TestSubmitDocument_UnchangedContentIsOK(t *testing.T) {
	e := echo.New()
	ingest := &stubIngestUsecase{
		submitResult: &usecase.SubmitResult{DocumentID: uuid.New(), Enqueued: false},
	}
	h := newHandler(&stubAnswerUsecase{}, ingest, &stubJobs{}, nil)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/documents",
		`{"external_id":"notion-page-7","content":"same as before"}`)

	require.NoError(t, h.SubmitDocument(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httpapi.SubmitDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Enqueued)
	assert.Empty(t, resp.JobID)
}

func TestSubmitDocument_RejectsIncompleteRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing external_id", body: `{"content":"text"}`},
		{name: "missing content", body: `{"external_id":"doc-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, &stubJobs{}, nil)

			c, rec := newJSONContext(e, http.MethodPost, "/v1/documents", tt.body)

			require.NoError(t, h.SubmitDocument(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDeleteDocument_Tombstones(t *testing.T) {
	e := echo.New()
	ingest := &stubIngestUsecase{}
	h := newHandler(&stubAnswerUsecase{}, ingest, &stubJobs{}, nil)

	c, rec := newJSONContext(e, http.MethodDelete, "/v1/documents/notion-page-7", "")
	c.SetParamNames("externalId")
	c.SetParamValues("notion-page-7")

	require.NoError(t, h.DeleteDocument(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "notion-page-7", ingest.deletedID)
}

func TestGetJob_States(t *testing.T) {
	jobID := uuid.New()
	docID := uuid.New()

	t.Run("found", func(t *testing.T) {
		e := echo.New()
		jobs := &stubJobs{job: &domain.IngestJob{
			ID:         jobID,
			DocumentID: docID,
			Status:     domain.JobProcessing,
			Attempts:   2,
			LastError:  "embed chunks: boom",
		}}
		h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, jobs, nil)

		c, rec := newJSONContext(e, http.MethodGet, "/v1/jobs/"+jobID.String(), "")
		c.SetParamNames("jobId")
		c.SetParamValues(jobID.String())

		require.NoError(t, h.GetJob(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp httpapi.JobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, jobID.String(), resp.ID)
		assert.Equal(t, docID.String(), resp.DocumentID)
		assert.Equal(t, "processing", resp.Status)
		assert.Equal(t, 2, resp.Attempts)
		assert.Equal(t, "embed chunks: boom", resp.LastError)
	})

	t.Run("unknown job", func(t *testing.T) {
		e := echo.New()
		h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, &stubJobs{}, nil)

		c, rec := newJSONContext(e, http.MethodGet, "/v1/jobs/"+jobID.String(), "")
		c.SetParamNames("jobId")
		c.SetParamValues(jobID.String())

		require.NoError(t, h.GetJob(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		e := echo.New()
		h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, &stubJobs{}, nil)

		c, rec := newJSONContext(e, http.MethodGet, "/v1/jobs/not-a-uuid", "")
		c.SetParamNames("jobId")
		c.SetParamValues("not-a-uuid")

		require.NoError(t, h.GetJob(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthAndReadiness(t *testing.T) {
	e := echo.New()

	t.Run("healthz", func(t *testing.T) {
		h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, &stubJobs{}, nil)
		c, rec := newJSONContext(e, http.MethodGet, "/healthz", "")
		require.NoError(t, h.Health(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready", func(t *testing.T) {
		h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, &stubJobs{},
			func(ctx context.Context) error { return nil })
		c, rec := newJSONContext(e, http.MethodGet, "/readyz", "")
		require.NoError(t, h.Ready(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("db down", func(t *testing.T) {
		h := newHandler(&stubAnswerUsecase{}, &stubIngestUsecase{}, &stubJobs{},
			func(ctx context.Context) error { return errors.New("connection refused") })
		c, rec := newJSONContext(e, http.MethodGet, "/readyz", "")
		require.NoError(t, h.Ready(c))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

// TestRequestValidator_EnforcesContract runs requests through the full echo
// router with the OpenAPI middleware attached, the way the server wires it.
func TestRequestValidator_EnforcesContract(t *testing.T) {
	mw, err := httpapi.RequestValidator()
	require.NoError(t, err)

	answer := &stubAnswerUsecase{output: &usecase.AnswerOutput{Mode: domain.ModeRetrieve}}
	h := newHandler(answer, &stubIngestUsecase{}, &stubJobs{}, nil)

	e := echo.New()
	h.Register(e, mw)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		if body != "" {
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing required field", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/answer", `{"history":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, answer.called)
	})

	t.Run("mode outside the enum", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/answer", `{"question":"hi","mode":"turbo"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conforming request reaches the handler", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/answer", `{"question":"hi","mode":"direct"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, answer.called)
		assert.Equal(t, domain.ModeDirect, answer.gotInput.Mode)
	})

	t.Run("health probes bypass validation", func(t *testing.T) {
		rec := do(http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
