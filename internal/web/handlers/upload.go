package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// ImageSaver stores one enrollment image.
type ImageSaver interface {
	Save(name, filename string, data []byte) (string, error)
}

// UploadHandler enrolls new faces.
type UploadHandler struct {
	store    ImageSaver
	provider GalleryProvider
	log      logrus.FieldLogger
}

func NewUploadHandler(store ImageSaver, provider GalleryProvider, log logrus.FieldLogger) *UploadHandler {
	return &UploadHandler{store: store, provider: provider, log: log}
}

// UploadResponse lists what was stored and what was refused.
type UploadResponse struct {
	Identity string   `json:"identity"`
	Saved    []string `json:"saved"`
	Rejected []string `json:"rejected,omitempty"`
}

func readUploadedFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fh.Filename)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Upload handles POST /faces with a name field and one or more files.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	files := r.MultipartForm.File["files"]
	if name == "" || len(files) == 0 {
		respondError(w, http.StatusBadRequest, "Provide a name and at least one image.")
		return
	}

	resp := UploadResponse{Identity: name, Saved: []string{}}
	for _, fh := range files {
		data, err := readUploadedFile(fh)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		rel, err := h.store.Save(name, fh.Filename, data)
		switch {
		case errors.Is(err, gallery.ErrInvalidIdentity):
			respondError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, gallery.ErrInvalidImage):
			resp.Rejected = append(resp.Rejected, fh.Filename)
			continue
		case err != nil:
			h.log.WithError(err).Error("saving enrollment image")
			respondError(w, http.StatusInternalServerError, "failed to save image")
			return
		}
		resp.Saved = append(resp.Saved, rel)
	}

	if len(resp.Saved) == 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "no supported images were uploaded",
			"rejected": resp.Rejected,
		})
		return
	}

	h.provider.Invalidate()
	h.log.WithFields(logrus.Fields{
		"identity": sanitizeForLog(name),
		"saved":    len(resp.Saved),
		"rejected": len(resp.Rejected),
	}).Info("faces enrolled")
	respondJSON(w, http.StatusCreated, resp)
}
