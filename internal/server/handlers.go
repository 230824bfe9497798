package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"idscan/internal/logger"
	"idscan/internal/scan"
)

// Error messages returned in the "error" field.
const (
	msgNoFile        = "No file provided"
	msgNoFilename    = "No file selected"
	msgTooLarge      = "File too large"
	msgImageFailed   = "Failed to process image"
	msgProcessFailed = "Failed to process Aadhar card"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// processAadhar accepts a multipart upload in field "file" and an optional
// "user_id", and answers with the six extracted fields.
func (s *Server) processAadhar(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), "http")

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge, err)
			return
		}
		log.Debug().Err(err).Msg("Request is not a multipart form")
		writeError(w, http.StatusBadRequest, msgNoFile, nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	// A file input submitted without a selection arrives with an empty filename
	if _, ok := r.MultipartForm.Value["file"]; ok {
		writeError(w, http.StatusBadRequest, msgNoFilename, nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile, nil)
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, msgNoFilename, nil)
		return
	}

	path, err := saveUpload(s.opts.UploadDir, header.Filename, file)
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to save upload")
		writeError(w, http.StatusInternalServerError, msgProcessFailed, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove upload")
		}
	}()

	userID := strings.TrimSpace(r.FormValue("user_id"))
	log.Info().Str("filename", header.Filename).Int64("size", header.Size).Str("user_id", userID).Msg("Processing upload")

	result, err := s.scanner.Scan(r.Context(), path, userID)
	switch {
	case errors.Is(err, scan.ErrRecognition):
		writeError(w, http.StatusInternalServerError, msgImageFailed, err)
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to process Aadhar card")
		writeError(w, http.StatusInternalServerError, msgProcessFailed, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// saveUpload copies src into a new file in dir and returns its path. The file
// name is unique per call, so concurrent uploads never share a file.
func saveUpload(dir, filename string, src io.Reader) (string, error) {
	dst, err := os.CreateTemp(dir, "*_"+uploadName(filename))
	if err != nil {
		return "", fmt.Errorf("saveUpload: %w", err)
	}
	path := dst.Name()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("saveUpload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("saveUpload: %w", err)
	}
	return path, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// uploadName makes a client filename safe to use inside the upload directory.
func uploadName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		name = "upload"
	}
	return name
}
