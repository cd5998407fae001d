package documents

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/extract"
	"cv-ranker/internal/shared/server/middleware"
	"cv-ranker/internal/shared/server/respond"
	"cv-ranker/internal/shared/telemetry"
	"cv-ranker/internal/usage"
)

// multipartOverhead is allowed on top of the file bytes for form fields.
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jds", h.uploadJD)
	rg.GET("/jds", h.listJDs)
	rg.GET("/jds/:id", h.getJD)
	rg.GET("/jds/:id/file", h.downloadJD)
	rg.DELETE("/jds/:id", h.archiveJD)

	rg.POST("/cvs", h.uploadCVs)
	rg.GET("/cvs", h.listCVs)
	rg.GET("/cvs/:id", h.getCV)
	rg.GET("/cvs/:id/file", h.downloadCV)
	rg.DELETE("/cvs/:id", h.archiveCV)
}

// WriteError maps ledger, extraction, and document errors to responses.
// Anything unrecognised becomes a 500.
func WriteError(c *gin.Context, err error, fallback string) {
	if usage.WriteError(c, err) {
		return
	}
	var unreadable *UnreadableError
	var missing *MissingError
	switch {
	case errors.As(err, &unreadable):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", "Could not extract text from the uploaded files", gin.H{"failed": unreadable.Failures})
	case errors.Is(err, extract.ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "unsupported_file_type", "Invalid file type. Only PDF and TXT files are allowed.", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, extract.ErrExtractionFailed):
		telemetry.Warn("documents.extraction_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err,
		})
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", "Could not extract text from the uploaded file", nil)
	case errors.As(err, &missing):
		respond.Error(c, http.StatusNotFound, "not_found", missing.Kind+" not found", gin.H{"missing": missing.IDs})
	case errors.Is(err, ErrNoOriginal):
		respond.Error(c, http.StatusNotFound, "not_found", "Original file not available", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
	default:
		telemetry.Error("documents.request_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err,
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

// WriteFormError reports a multipart body that could not be parsed. Bodies
// cut off by http.MaxBytesReader get a 413 naming the limit.
func WriteFormError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("Upload exceeds the %d byte request limit", tooLarge.Limit), gin.H{"limit": tooLarge.Limit})
		return
	}
	respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
}

func (h *Handler) uploadJD(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxFileBytes+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		WriteFormError(c, err)
		return
	}
	defer form.RemoveAll()

	title := strings.TrimSpace(c.PostForm("title"))
	var file File
	switch {
	case len(form.File["file"]) > 0:
		file = FromMultipart(form.File["file"][0])
	case strings.TrimSpace(c.PostForm("text")) != "":
		if title == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "title is required for pasted text", nil)
			return
		}
		file = TextFile(title+".txt", c.PostForm("text"))
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "file or text is required", nil)
		return
	}

	jd, err := h.Svc.UploadJD(c.Request.Context(), userID, file, title)
	if err != nil {
		WriteError(c, err, "failed to upload job description")
		return
	}
	respond.Created(c, toJDResponse(jd, false))
}

func (h *Handler) listJDs(c *gin.Context) {
	jds, err := h.Svc.ListJDs(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		WriteError(c, err, "failed to list job descriptions")
		return
	}
	items := make([]JDResponse, 0, len(jds))
	for _, jd := range jds {
		items = append(items, toJDResponse(jd, false))
	}
	respond.List(c, items)
}

func (h *Handler) getJD(c *gin.Context) {
	jd, err := h.Svc.GetJD(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err, "failed to fetch job description")
		return
	}
	respond.OK(c, toJDResponse(jd, true))
}

func (h *Handler) archiveJD(c *gin.Context) {
	if err := h.Svc.ArchiveJD(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		WriteError(c, err, "failed to delete job description")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadCVs(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	maxFiles := int64(h.Svc.MaxFiles)
	if maxFiles <= 0 {
		maxFiles = 1
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFiles*h.Svc.MaxFileBytes+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		WriteFormError(c, err)
		return
	}
	defer form.RemoveAll()

	headers := form.File["files"]
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, FromMultipart(fh))
	}

	res, err := h.Svc.UploadCVs(c.Request.Context(), userID, files)
	if err != nil {
		WriteError(c, err, "failed to upload cvs")
		return
	}
	items := make([]CVResponse, 0, len(res.Items))
	for _, cv := range res.Items {
		items = append(items, toCVResponse(cv, false))
	}
	respond.Created(c, gin.H{"items": items, "count": len(items), "failed": res.Failed})
}

func (h *Handler) listCVs(c *gin.Context) {
	cvs, err := h.Svc.ListCVs(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		WriteError(c, err, "failed to list cvs")
		return
	}
	items := make([]CVResponse, 0, len(cvs))
	for _, cv := range cvs {
		items = append(items, toCVResponse(cv, false))
	}
	respond.List(c, items)
}

func (h *Handler) getCV(c *gin.Context) {
	cv, err := h.Svc.GetCV(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err, "failed to fetch cv")
		return
	}
	respond.OK(c, toCVResponse(cv, true))
}

func (h *Handler) archiveCV(c *gin.Context) {
	if err := h.Svc.ArchiveCV(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		WriteError(c, err, "failed to delete cv")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) downloadJD(c *gin.Context) {
	orig, err := h.Svc.OpenJDOriginal(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err, "failed to open job description file")
		return
	}
	serveOriginal(c, orig)
}

func (h *Handler) downloadCV(c *gin.Context) {
	orig, err := h.Svc.OpenCVOriginal(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err, "failed to open cv file")
		return
	}
	serveOriginal(c, orig)
}

func serveOriginal(c *gin.Context, orig Original) {
	defer orig.Body.Close()
	size := orig.Size
	if size <= 0 {
		size = -1
	}
	headers := map[string]string{}
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": orig.FileName}); disposition != "" {
		headers["Content-Disposition"] = disposition
	}
	c.DataFromReader(http.StatusOK, size, orig.MimeType, orig.Body, headers)
}
