package web

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"wastewatch/internal/domain"
)

const defaultMaxUploadBytes = 50 * 1024 * 1024 // 50 MB

// allowedImageTypes is the set of MIME types accepted for uploads.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniff spec (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "failed to parse form"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "image file required"})
		return
	}
	defer closeWithLog(file, "upload file", s)

	imageData, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if int64(len(imageData)) > s.maxUploadBytes {
		s.writeError(w, r, &domain.ValidationError{Msg: "image exceeds the upload size limit"})
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		s.writeError(w, r, &domain.ValidationError{Msg: "unsupported image format"})
		return
	}

	var loggedAt time.Time
	if raw := r.FormValue("timestamp"); raw != "" {
		loggedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, r, &domain.ValidationError{Msg: "timestamp must be RFC 3339"})
			return
		}
	}

	result, err := s.service.Ingest(r.Context(), imageData, mimeType, loggedAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "invalid entry id"})
		return
	}

	reader, mimeType, err := s.service.Image(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeWithLog(reader, "image reader", s)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write image failed", "entry_id", id, "error", err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, s *Server) {
	if err := c.Close(); err != nil {
		s.logger.Error("failed to close resource", "label", label, "error", err)
	}
}
