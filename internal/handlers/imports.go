package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/importer"
)

type uploadedFile struct {
	name    string
	content []byte
}

// readUpload reads the multipart "file" field within the upload limit
func (h *APIHandler) readUpload(w http.ResponseWriter, r *http.Request) (*uploadedFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return nil, false
	}
	return &uploadedFile{name: header.Filename, content: content}, true
}

// PreviewImport handles POST /api/imports/preview
func (h *APIHandler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	preview, err := h.importer.Preview(r.Context(), upload.name, upload.content)
	if err != nil {
		h.writeError(w, r, err, "Failed to preview file")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ImportStatement handles POST /api/cards/{cardId}/imports.
//
// Form fields: file (required), mapping ("date,description,amount[,category]"
// column indexes), skipHeader (bool), closingDay (1-31).
func (h *APIHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	req := importer.FileRequest{
		CardID:   r.PathValue("cardId"),
		FileName: upload.name,
		Content:  upload.content,
	}

	var err error
	if req.Mapping, err = domain.ParseColumnMapping(r.FormValue("mapping")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if raw := r.FormValue("skipHeader"); raw != "" {
		if req.SkipHeader, err = strconv.ParseBool(raw); err != nil {
			http.Error(w, "skipHeader must be a boolean", http.StatusBadRequest)
			return
		}
	}
	if raw := r.FormValue("closingDay"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "closingDay must be an integer", http.StatusBadRequest)
			return
		}
		req.ClosingDay = &day
	}

	result, err := h.importer.ImportFile(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err, "Failed to import file")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListImports handles GET /api/imports?limit=N, newest first
func (h *APIHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := defaultImportLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxImportLimit {
			http.Error(w, "limit must be an integer in [1,100]", http.StatusBadRequest)
			return
		}
		limit = n
	}

	imports, err := h.statements.ListImports(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch imports")
		return
	}
	if imports == nil {
		imports = []*domain.Import{}
	}
	writeJSON(w, http.StatusOK, imports)
}
