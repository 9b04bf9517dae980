package handler

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledgerscan/internal/csvexport"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/middleware"
	"ledgerscan/internal/service"
	"ledgerscan/internal/xlsxexport"
)

// DocumentHandler handles document upload, processing and export endpoints.
type DocumentHandler struct {
	uploads   service.UploadService
	processor service.Processor
	exports   service.ExportService
	maxBytes  int64
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(
	uploads service.UploadService,
	processor service.Processor,
	exports service.ExportService,
	maxBytes int64,
) *DocumentHandler {
	return &DocumentHandler{uploads: uploads, processor: processor, exports: exports, maxBytes: maxBytes}
}

// DocumentView is a document with the sanitized reason of its last failure.
type DocumentView struct {
	*domain.Document
	LastError string `json:"last_error,omitempty"`
}

// Upload handles POST /api/v1/documents
// @Summary Upload a document
// @Description Upload a PDF, JPG or PNG. Identical content is stored once; every upload creates a new document in pending.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload (PDF, JPG, or PNG)"
// @Success 201 {object} Response{data=service.UploadResult} "Document created"
// @Failure 400 {object} ErrorResponseBody "Missing file or unsupported type"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Failure 500 {object} ErrorResponseBody "Storage failed"
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	if h.maxBytes > 0 && header.Size > h.maxBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}
	var r io.Reader = file
	if h.maxBytes > 0 {
		r = io.LimitReader(file, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
		return
	}

	res, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		UploadedBy:  middleware.GetSubject(c),
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, res)
}

// GetByID handles GET /api/v1/documents/:id
// @Summary Get a document
// @Description Get a document's status and results. Failed documents carry the last error.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} Response{data=DocumentView} "Document details"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.exports.GetDocument(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	view := DocumentView{Document: doc}
	if doc.Status == domain.StatusFailed {
		detail, err := h.exports.LastError(c.Request.Context(), id)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "documentHandler.GetByID: loading last error", "document_id", id, "error", err)
		}
		view.LastError = detail
	}
	RespondOK(c, view)
}

// List handles GET /api/v1/documents
// @Summary List documents
// @Description List documents, newest first, optionally filtered by status
// @Tags documents
// @Produce json
// @Param status query string false "Pipeline status filter"
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.Document,meta=PagMeta} "List of documents"
// @Failure 400 {object} ErrorResponseBody "Invalid status"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)
	filter := domain.DocumentFilter{Offset: offset, Limit: limit}

	if s := c.Query("status"); s != "" {
		status, ok := domain.ParsePipelineStatus(s)
		if !ok {
			RespondError(c, http.StatusBadRequest, "INVALID_STATUS", "unknown status "+strconv.Quote(s))
			return
		}
		filter.Status = &status
	}

	docs, total, err := h.exports.ListDocuments(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}

	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Process handles POST /api/v1/documents/:id/process
// @Summary Process a document
// @Description Run the pipeline synchronously. Completed and failed documents are returned unchanged unless reprocess is set.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Param reprocess query bool false "Re-run a completed or failed document from the start"
// @Param hint query string false "Document type hint (bank_statement, invoice, receipt, generic)"
// @Success 200 {object} Response{data=service.ProcessResult} "Processing result"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document is being processed"
// @Security BearerAuth
// @Router /documents/{id}/process [post]
func (h *DocumentHandler) Process(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reprocess, _ := strconv.ParseBool(c.DefaultQuery("reprocess", "false"))

	res, err := h.processor.Process(c.Request.Context(), id, service.ProcessOptions{
		Reprocess: reprocess,
		Hint:      c.Query("hint"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, res)
}

// Logs handles GET /api/v1/documents/:id/logs
// @Summary Get the processing log
// @Description List every stage attempt recorded for a document, oldest first
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} Response{data=[]domain.ProcessingLogEntry} "Processing log"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id}/logs [get]
func (h *DocumentHandler) Logs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	entries, err := h.exports.ListLogs(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.ProcessingLogEntry{}
	}
	RespondOK(c, entries)
}

// Export handles GET /api/v1/documents/:id/export
// @Summary Export a document
// @Description Export a completed document as JSON, CSV or XLSX
// @Tags documents
// @Produce json
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Document ID"
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} Response{data=export.Export} "Export"
// @Failure 400 {object} ErrorResponseBody "Invalid ID or format"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document not completed"
// @Security BearerAuth
// @Router /documents/{id}/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" && format != "xlsx" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be json, csv or xlsx")
		return
	}

	e, err := h.exports.Rows(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case "json":
		RespondOK(c, e)
		return
	case "csv":
		contentType = "text/csv; charset=utf-8"
		buf.Write(csvexport.BOM)
		w := csvexport.NewWriter(&buf)
		err = w.WriteExport(e)
	case "xlsx":
		contentType = xlsxexport.ContentType
		err = xlsxexport.Write(&buf, e)
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "documentHandler.Export: rendering", "document_id", id, "format", format, "error", err)
		RespondError(c, http.StatusInternalServerError, "EXPORT_FAILED", "could not render export")
		return
	}

	filename := csvexport.BuildFilename(e.Header.Filename, format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
