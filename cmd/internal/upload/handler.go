// Package upload stores user-submitted images on local disk and serves
// them back under /uploads/.
package upload

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gather/cmd/internal/auth"
	"gather/cmd/internal/webapi"

	"github.com/google/uuid"
)

const (
	maxUploadBytes = 5 << 20

	formField = "image"
	urlPrefix = "/uploads/"
)

// Handler accepts authenticated image uploads.
type Handler struct {
	log      *slog.Logger
	dir      string
	resolver *auth.Resolver
}

// NewHandler constructs an upload Handler writing into dir. The
// directory is created if missing.
func NewHandler(log *slog.Logger, dir string, resolver *auth.Resolver) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("upload: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Handler{log: log, dir: dir, resolver: resolver}, nil
}

// Register wires the upload route and static file serving.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("POST /api/upload", h.resolver.RequireUser(http.HandlerFunc(h.handleUpload)))
	mux.Handle("GET "+urlPrefix, http.StripPrefix(urlPrefix, http.FileServer(http.Dir(h.dir))))
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "image must be a multipart upload of at most 5 MiB")
		return
	}

	file, header, err := r.FormFile(formField)
	if err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "missing image field")
		return
	}
	defer func() { _ = file.Close() }()

	// Sniff the content rather than trusting the client's header.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "unreadable upload")
		return
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "only image uploads are accepted")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.log.Error("upload.seek.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	name := uuid.NewString() + sanitizeExt(header.Filename)
	dst, err := os.OpenFile(filepath.Join(h.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		h.log.Error("upload.create.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(dst.Name())
		h.log.Error("upload.write.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("upload.stored", "file", name, "bytes", header.Size)
	webapi.WriteJSON(w, http.StatusCreated, uploadResponse{ImageURL: urlPrefix + name})
}

// sanitizeExt keeps a short, safe file extension from the client name.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 {
		return ""
	}
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
