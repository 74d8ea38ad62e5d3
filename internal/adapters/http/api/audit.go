package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/ecoaudit/internal/domain/artifact"
	"github.com/okian/ecoaudit/internal/domain/audit"
	"github.com/okian/ecoaudit/internal/domain/model"
	"github.com/okian/ecoaudit/pkg/logger"
	"github.com/okian/ecoaudit/pkg/metrics"
)

// Client-facing messages. The 500 text is kept stable for existing clients.
const (
	msgNoFile      = "No file uploaded"
	msgBadEpochs   = "epochs must be a positive integer"
	msgAuditFailed = "Audit failed. Check file format."
)

// Error codes carried on 500 responses.
const (
	CodeMissingDependency = "missing_dependency"
	CodeUnknownArtifact   = "unknown_artifact"
	CodeAuditFailed       = "audit_failed"
)

const (
	formFile   = "file"
	formEpochs = "epochs"
)

// AuditHandler handles POST /api/audit.
type AuditHandler struct {
	deps      AuditDependencies
	maxUpload int64
	log       logger.Logger
}

// NewAuditHandler creates an audit handler accepting bodies up to maxUpload bytes.
func NewAuditHandler(deps AuditDependencies, maxUpload int64, log logger.Logger) *AuditHandler {
	return &AuditHandler{deps: deps, maxUpload: maxUpload, log: log}
}

// HandleAudit audits the uploaded dataset or model and replies with the report.
func (h *AuditHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_audit"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	// maxMemory equal to the body cap keeps the upload off disk until the
	// service has checked its extension.
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.rejectForm(w, r, op, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	epochs, err := parseEpochs(r.FormValue(formEpochs))
	if err != nil {
		metrics.RecordUploadRejected("epochs")
		h.fail(w, r, WrapKind(op, ErrBadRequest, err), http.StatusBadRequest, errorResponse{Error: msgBadEpochs})
		return
	}

	file, header, err := r.FormFile(formFile)
	if err != nil || strings.TrimSpace(header.Filename) == "" {
		if file != nil {
			_ = file.Close()
		}
		metrics.RecordUploadRejected("missing_file")
		h.fail(w, r, WrapKind(op, ErrMissingFile, err), http.StatusBadRequest, errorResponse{Error: msgNoFile})
		return
	}
	defer file.Close()

	rep, err := h.deps.AuditUpload(r.Context(), header.Filename, file, epochs)
	if err != nil {
		status, body := failureResponse(err)
		h.fail(w, r, WrapKind(op, ErrAuditFailed, err), status, body)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *AuditHandler) rejectForm(w http.ResponseWriter, r *http.Request, op string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		metrics.RecordUploadRejected("size")
		msg := fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)
		h.fail(w, r, WrapKind(op, ErrTooLarge, err), http.StatusBadRequest, errorResponse{Error: msg})
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		metrics.RecordUploadRejected("missing_file")
		h.fail(w, r, WrapKind(op, ErrMissingFile, err), http.StatusBadRequest, errorResponse{Error: msgNoFile})
	default:
		metrics.RecordUploadRejected("form")
		h.fail(w, r, WrapKind(op, ErrBadRequest, err), http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
}

func (h *AuditHandler) fail(w http.ResponseWriter, r *http.Request, err error, status int, body errorResponse) {
	if h.log != nil {
		fields := []logger.Field{logger.Int("status", status), logger.Error(err)}
		if status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "audit request failed", fields...)
		} else {
			h.log.Debug(r.Context(), "audit request rejected", fields...)
		}
	}
	writeError(w, status, body)
}

// parseEpochs accepts an empty value as "use the default".
func parseEpochs(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse epochs %q: %w", raw, err)
	}
	if n < 1 {
		return 0, audit.ErrInvalidEpochs
	}
	return n, nil
}

// failureResponse maps a service error to a status and body.
func failureResponse(err error) (int, errorResponse) {
	var malformed *artifact.MalformedInputError
	var missing *model.MissingDependencyError
	switch {
	case errors.Is(err, artifact.ErrUnsupportedFileType):
		return http.StatusBadRequest, errorResponse{
			Error: "Only " + strings.Join(artifact.Extensions(), ", ") + " files are supported",
		}
	case errors.Is(err, audit.ErrInvalidEpochs):
		return http.StatusBadRequest, errorResponse{Error: msgBadEpochs}
	case errors.As(err, &malformed):
		return http.StatusBadRequest, errorResponse{Error: "malformed input: " + malformed.Err.Error()}
	case errors.Is(err, audit.ErrInvalidDataset):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.As(err, &missing):
		return http.StatusInternalServerError, errorResponse{
			Error:             msgAuditFailed,
			Code:              CodeMissingDependency,
			MissingDependency: missing.Name,
		}
	case errors.Is(err, artifact.ErrUnknownArtifact):
		return http.StatusInternalServerError, errorResponse{Error: msgAuditFailed, Code: CodeUnknownArtifact}
	default:
		return http.StatusInternalServerError, errorResponse{Error: msgAuditFailed, Code: CodeAuditFailed}
	}
}
