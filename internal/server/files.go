package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"grudai/internal/extract"
	"grudai/internal/logging"
	"grudai/internal/store"
)

// allowedMIMETypes is the upload allow-list. Text types get their content
// extracted for chat context; binary types are stored for download only.
var allowedMIMETypes = map[string]bool{
	"text/plain":       true,
	"text/csv":         true,
	"text/markdown":    true,
	"application/json": true,
	"application/pdf":  true,
	"image/jpeg":       true,
	"image/png":        true,
	"image/gif":        true,
	"image/webp":       true,
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	files, err := s.store.ListFiles(projectID)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if files == nil {
		files = []store.File{}
	}
	successResponse(w, map[string]interface{}{"files": files}, "")
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		errorResponse(w, http.StatusBadRequest, "File too large", "Upload exceeds the size limit")
		return
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "No file", "Please upload a file")
		return
	}
	defer src.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMIMETypes[mimeType] {
		errorResponse(w, http.StatusBadRequest, "Unsupported type", "File type not allowed")
		return
	}

	storedName := uuid.New().String() + filepath.Ext(header.Filename)
	if err := os.MkdirAll(s.uploadsDir, 0755); err != nil {
		logging.APIError("Failed to create uploads dir: %v", err)
		errorResponse(w, http.StatusInternalServerError, "Server error", "Failed to store file")
		return
	}
	dstPath := filepath.Join(s.uploadsDir, storedName)

	dst, err := os.Create(dstPath)
	if err != nil {
		logging.APIError("Failed to create upload file: %v", err)
		errorResponse(w, http.StatusInternalServerError, "Server error", "Failed to store file")
		return
	}
	size, err := io.Copy(dst, src)
	dst.Close()
	if err != nil {
		os.Remove(dstPath)
		logging.APIError("Failed to write upload: %v", err)
		errorResponse(w, http.StatusInternalServerError, "Server error", "Failed to store file")
		return
	}

	result := s.extractor.Extract(dstPath, mimeType)
	var extracted *string
	if result.Method == extract.MethodText && result.Text != "" {
		extracted = &result.Text
	}
	logging.Extract("Extracted %s (%s): method=%s chars=%d",
		header.Filename, mimeType, result.Method, len(result.Text))

	file, err := s.store.CreateFile(projectID, storedName, header.Filename, mimeType, size, extracted, result.Method)
	if err != nil {
		os.Remove(dstPath)
		writeStoreError(w, err, "")
		return
	}
	successResponse(w, map[string]interface{}{"file": file}, "File uploaded successfully")
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	file, ok := s.resolveFile(w, r)
	if !ok {
		return
	}

	path := filepath.Join(s.uploadsDir, file.Filename)
	if _, err := os.Stat(path); err != nil {
		errorResponse(w, http.StatusNotFound, "Not found", "File missing from storage")
		return
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.OriginalName+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleFileText(w http.ResponseWriter, r *http.Request) {
	file, ok := s.resolveFile(w, r)
	if !ok {
		return
	}

	text := ""
	if file.ExtractedText != nil {
		text = *file.ExtractedText
	}
	successResponse(w, map[string]interface{}{
		"text":   text,
		"method": file.ExtractionMethod,
	}, "")
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	file, ok := s.resolveFile(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteFile(file.ID); err != nil {
		writeStoreError(w, err, "File not found")
		return
	}
	if err := os.Remove(filepath.Join(s.uploadsDir, file.Filename)); err != nil && !os.IsNotExist(err) {
		logging.APIError("Failed to remove stored file %s: %v", file.Filename, err)
	}
	successResponse(w, nil, "File deleted")
}

// resolveFile loads the file named by the fileID URL param, scoped to the
// authenticated user. Writes the error response itself on failure.
func (s *Server) resolveFile(w http.ResponseWriter, r *http.Request) (*store.File, bool) {
	id, err := urlID(r, "fileID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "File id must be numeric")
		return nil, false
	}
	file, err := s.store.GetFileForUser(currentUserID(r), id)
	if err != nil {
		writeStoreError(w, err, "File not found")
		return nil, false
	}
	return file, true
}
