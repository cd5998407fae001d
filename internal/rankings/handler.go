package rankings

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/scoring"
	"cv-ranker/internal/shared/server/middleware"
	"cv-ranker/internal/shared/server/respond"
)

const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches ranking routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rankings", h.rankByReference)
	rg.POST("/rankings/upload", h.rankUploads)
	rg.GET("/rankings", h.list)
	rg.GET("/rankings/:id", h.get)
	rg.DELETE("/rankings/:id", h.archive)
}

// BatchResponse is a batch with its verdict tally.
type BatchResponse struct {
	Batch
	Summary Summary `json:"summary"`
}

func toBatchResponse(b Batch) BatchResponse {
	if b.Results == nil {
		b.Results = []scoring.Result{}
	}
	return BatchResponse{Batch: b, Summary: b.Summary()}
}

type rankRequest struct {
	JDID  string   `json:"jdId"`
	CVIDs []string `json:"cvIds"`
}

func (h *Handler) rankByReference(c *gin.Context) {
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.JDID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jdId is required", nil)
		return
	}
	b, err := h.Svc.RankByReference(c.Request.Context(), middleware.UserIDFromContext(c), req.JDID, req.CVIDs)
	h.writeBatch(c, b, err)
}

func (h *Handler) rankUploads(c *gin.Context) {
	maxFiles := int64(h.Svc.maxCandidates() + 1)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFiles*h.Svc.MaxFileBytes+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		documents.WriteFormError(c, err)
		return
	}
	if len(form.File["jd"]) > 1 {
		_ = form.RemoveAll()
		respond.Error(c, http.StatusBadRequest, "validation_error", "exactly one job description file is allowed", nil)
		return
	}
	req := UploadRequest{
		JobTitle: strings.TrimSpace(c.PostForm("jdTitle")),
		Release:  func() { _ = form.RemoveAll() },
	}
	switch {
	case len(form.File["jd"]) > 0:
		f := documents.FromMultipart(form.File["jd"][0])
		req.JobDescription = &f
	case strings.TrimSpace(c.PostForm("jdText")) != "":
		name := req.JobTitle
		if name == "" {
			name = "job-description"
		}
		f := documents.TextFile(name+".txt", c.PostForm("jdText"))
		req.JobDescription = &f
	}
	for _, fh := range form.File["cvs"] {
		req.Candidates = append(req.Candidates, documents.FromMultipart(fh))
	}

	b, err := h.Svc.RankUploads(c.Request.Context(), middleware.UserIDFromContext(c), req)
	h.writeBatch(c, b, err)
}

func (h *Handler) writeBatch(c *gin.Context, b Batch, err error) {
	if b.ID != "" {
		c.Set("rankingId", b.ID)
		c.Set("jdId", b.JobDescriptionID)
		c.Set("statusTransition", string(StatusProcessing)+"->"+string(b.Status))
	}
	if err == nil || (errors.Is(err, ErrBatchFailed) && b.ID != "") {
		respond.OK(c, toBatchResponse(b))
		return
	}
	writeError(c, err, "failed to rank candidates")
}

func (h *Handler) list(c *gin.Context) {
	batches, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to list rankings")
		return
	}
	items := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		items = append(items, toBatchResponse(b))
	}
	respond.List(c, items)
}

func (h *Handler) get(c *gin.Context) {
	b, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch ranking")
		return
	}
	respond.OK(c, toBatchResponse(b))
}

func (h *Handler) archive(c *gin.Context) {
	if err := h.Svc.Archive(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		writeError(c, err, "failed to delete ranking")
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "ranking not found", nil)
	case errors.Is(err, ErrNotProcessing):
		respond.Error(c, http.StatusConflict, "conflict", "ranking already finished", nil)
	default:
		documents.WriteError(c, err, fallback)
	}
}
