package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/customer-import/internal/core"
	"github.com/JonMunkholm/customer-import/internal/logging"
	mw "github.com/JonMunkholm/customer-import/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// executeResponse is returned by the execute endpoint. Error is set when the
// run stopped on a storage failure; Summary then lists what was applied.
type executeResponse struct {
	Summary core.ImportSummary `json:"summary"`
	Error   *ErrorResponse     `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"import": s.service.Status(),
	})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleDownloadTemplate streams the blank import workbook.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := core.WriteTemplate(&buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.TemplateFileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// handlePreview parses and validates an uploaded workbook and keeps it as a
// pending preview for the calling actor.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	actor := mw.ActorFromContext(r.Context())
	maxSize := s.cfg.Import.MaxFileSize

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
		} else {
			err = fmt.Errorf("%w: %v", errInvalidForm, err)
		}
		respondError(w, r, err, statusFor(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	preview, err := s.service.Preview(r.Context(), actor, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, preview)
}

// ownPreview loads a preview and checks it belongs to the calling actor.
func (s *Server) ownPreview(r *http.Request) (*core.Preview, error) {
	preview, err := s.service.GetPreview(chi.URLParam(r, "previewID"))
	if err != nil {
		return nil, err
	}
	if preview.ActorID != mw.ActorFromContext(r.Context()) {
		return nil, core.ErrActorMismatch
	}
	return preview, nil
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.ownPreview(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleDiscardPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.ownPreview(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if err := s.service.DiscardPreview(preview.ID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecute applies a confirmed preview.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	previewID := chi.URLParam(r, "previewID")
	actor := mw.ActorFromContext(r.Context())

	// A client disconnect must not stop a run halfway.
	ctx := context.WithoutCancel(r.Context())

	summary, err := s.service.Execute(ctx, previewID, actor)
	if err != nil {
		if summary.BatchID == "" {
			respondError(w, r, err, statusFor(err))
			return
		}

		body := newErrorResponse(err)
		logging.WithFields(r.Context(), "batch_id", summary.BatchID, "preview_id", previewID).
			Error("import stopped early", "error", err, "code", body.Code)
		writeJSON(w, http.StatusInternalServerError, executeResponse{Summary: summary, Error: &body})
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{Summary: summary})
}
