package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"lucid/internal/core"
	"lucid/internal/ingest"
)

// uploadFields maps multipart field names to source formats. Both fields
// are optional but at least one must be present.
var uploadFields = []struct {
	field  string
	source core.Source
}{
	{"bank_file", core.SourceBank},
	{"card_file", core.SourceCreditCard},
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)

	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		httpError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var summaries []ingest.Summary
	for _, uf := range uploadFields {
		file, header, err := r.FormFile(uf.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "reading "+uf.field)
			return
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			httpError(w, http.StatusBadRequest, "reading "+uf.field)
			return
		}

		summary, err := s.ingester.IngestFile(r.Context(), owner, header.Filename, data, uf.source)
		if err != nil {
			slog.ErrorContext(r.Context(), "File ingestion failed",
				"owner_id", owner,
				"filename", header.Filename,
				"source", uf.source,
				"error", err)
			httpError(w, http.StatusUnprocessableEntity, "ingesting "+header.Filename+": "+err.Error())
			return
		}
		summaries = append(summaries, summary)
	}

	if len(summaries) == 0 {
		httpError(w, http.StatusBadRequest, "no file provided: expected bank_file or card_file")
		return
	}

	s.invalidateViews(owner)
	respondJSON(w, http.StatusOK, map[string]any{"results": summaries})
}
