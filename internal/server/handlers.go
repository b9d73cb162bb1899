package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carelane/chartscan/internal/model"
	"github.com/carelane/chartscan/internal/processor"
)

// maxUploadBytes bounds multipart uploads (50 MB covers long scanned charts).
const maxUploadBytes = 50 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart PDF upload and runs the full pipeline
// synchronously. A second concurrent upload gets 409 from the processor's
// single slot.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "parse multipart form"))
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "missing document file"))
		return
	}
	defer file.Close() //nolint:errcheck

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	tmp, err := os.CreateTemp("", "chartscan-*.pdf")
	if err != nil {
		writeError(w, http.StatusInternalServerError, eris.Wrap(err, "create temp file"))
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, eris.Wrap(err, "write temp file"))
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, eris.Wrap(err, "close temp file"))
		return
	}

	doc, err := s.proc.Process(r.Context(), tmp.Name(), filepath.Base(name), progressLogger(name), processor.WithTempSource())
	if err != nil {
		if eris.Is(err, model.ErrBusy) {
			_ = os.Remove(tmp.Name())
			writeError(w, http.StatusConflict, err)
			return
		}
		// Partial documents (e.g. failed structuring) are still cached;
		// surface the document alongside the error detail.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"document": doc,
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.proc.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.proc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.proc.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFieldReference(w http.ResponseWriter, r *http.Request) {
	ref, err := s.proc.FieldReference(
		chi.URLParam(r, "id"),
		model.FieldKey(chi.URLParam(r, "field")),
	)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if ref == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, model.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// progressLogger reports pipeline progress into the structured log; HTTP
// callers poll GET /documents/{id} for state.
func progressLogger(name string) model.ProgressFunc {
	return func(status model.ProgressStatus, fraction float64, step, message string) {
		zap.L().Info("processing progress",
			zap.String("document", name),
			zap.String("status", string(status)),
			zap.Float64("fraction", fraction),
			zap.String("step", step),
			zap.String("message", message),
		)
	}
}
