package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/orchestrator"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/repository"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/source"
)

// Pipeline is the import pipeline surface the handler depends on.
type Pipeline interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*domain.ImportJob, error)
	Get(ctx context.Context, jobID string) (*domain.ImportJob, error)
	Advance(ctx context.Context, jobID string) (domain.JobStatus, error)
	Retry(ctx context.Context, jobID string) (domain.JobStatus, error)
	Collection(ctx context.Context, id string) (*domain.Collection, error)
	ListHistory(ctx context.Context, filter repository.HistoryFilter) ([]domain.ImportHistory, error)
}

// ImportHandler exposes the import pipeline over HTTP.
type ImportHandler struct {
	pipeline Pipeline
	resolver *source.Resolver
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(pipeline Pipeline, resolver *source.Resolver) *ImportHandler {
	return &ImportHandler{pipeline: pipeline, resolver: resolver}
}

// submitForm is the request body of POST /api/v1/imports. The payload
// arrives either as an uploaded file, an inline document, or a location
// to fetch from, depending on source_kind.
type submitForm struct {
	SourceKind     string `form:"source_kind" json:"source_kind"`
	Format         string `form:"format" json:"format"`
	CollectionName string `form:"collection_name" json:"collection_name"`
	Location       string `form:"location" json:"location"`
	Payload        string `form:"payload" json:"payload"`
}

// Submit handles POST /api/v1/imports.
func (h *ImportHandler) Submit(c *gin.Context) {
	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}

	inline := []byte(form.Payload)
	filename := ""

	if file, err := c.FormFile("file"); err == nil {
		if form.SourceKind == "" {
			form.SourceKind = string(domain.SourceKindFile)
		}
		filename = file.Filename
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
			return
		}
		defer f.Close()
		inline, err = io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
			return
		}
	}
	if form.SourceKind == "" {
		form.SourceKind = string(domain.SourceKindRaw)
	}

	kind := domain.SourceKind(form.SourceKind)
	payload, err := h.resolver.Resolve(c.Request.Context(), kind, inline, form.Location)
	if err != nil {
		respondError(c, err)
		return
	}

	job, err := h.pipeline.Submit(c.Request.Context(), orchestrator.SubmitRequest{
		SourceKind:     kind,
		Format:         domain.Format(form.Format),
		Payload:        payload,
		CollectionName: form.CollectionName,
		Principal:      principal(c),
		Filename:       filename,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// Get handles GET /api/v1/imports/:id.
func (h *ImportHandler) Get(c *gin.Context) {
	job, err := h.pipeline.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Advance handles POST /api/v1/imports/:id/advance. It performs one
// claim-and-run step and reports the resulting status.
func (h *ImportHandler) Advance(c *gin.Context) {
	status, err := h.pipeline.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status})
}

// Retry handles POST /api/v1/imports/:id/retry.
func (h *ImportHandler) Retry(c *gin.Context) {
	status, err := h.pipeline.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status})
}

// Collection handles GET /api/v1/collections/:id.
func (h *ImportHandler) Collection(c *gin.Context) {
	col, err := h.pipeline.Collection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

// History handles GET /api/v1/history.
func (h *ImportHandler) History(c *gin.Context) {
	filter := repository.HistoryFilter{
		JobID:        c.Query("job_id"),
		CollectionID: c.Query("collection_id"),
		EndpointID:   c.Query("endpoint_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	records, err := h.pipeline.ListHistory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []domain.ImportHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"history": records, "count": len(records)})
}

// principal identifies the submitter from the X-Principal header.
func principal(c *gin.Context) string {
	if p := strings.TrimSpace(c.GetHeader("X-Principal")); p != "" {
		return p
	}
	return "anonymous"
}

// respondError maps pipeline errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		invalid     *domain.InvalidRequestError
		unsupported *domain.UnsupportedFormatError
		malformed   *domain.MalformedDocumentError
		failed      *domain.ValidationFailedError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &invalid), errors.As(err, &unsupported), errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &failed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  err.Error(),
			"report": failed.Report,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
