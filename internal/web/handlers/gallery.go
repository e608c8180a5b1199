package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// IdentityRemover deletes an identity from the enrollment tree.
type IdentityRemover interface {
	Remove(name string) error
}

// GalleryHandler lists and edits enrolled identities.
type GalleryHandler struct {
	provider GalleryProvider
	store    IdentityRemover
	log      logrus.FieldLogger
}

func NewGalleryHandler(provider GalleryProvider, store IdentityRemover, log logrus.FieldLogger) *GalleryHandler {
	return &GalleryHandler{provider: provider, store: store, log: log}
}

// IdentitySummary is one enrolled person.
type IdentitySummary struct {
	Identity facematch.Identity `json:"identity"`
	Entries  int                `json:"entries"`
}

// GalleryResponse is the gallery listing.
type GalleryResponse struct {
	Identities []IdentitySummary `json:"identities"`
	Stats      gallery.Stats     `json:"stats"`
}

func summarizeGallery(g facematch.Gallery) []IdentitySummary {
	out := []IdentitySummary{}
	index := make(map[facematch.Identity]int)
	for _, e := range g {
		i, ok := index[e.Identity]
		if !ok {
			i = len(out)
			index[e.Identity] = i
			out = append(out, IdentitySummary{Identity: e.Identity})
		}
		out[i].Entries++
	}
	return out
}

// List handles GET /gallery.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	g, stats, err := h.provider.Current(r.Context())
	if err != nil {
		h.log.WithError(err).Error("loading gallery")
		respondError(w, http.StatusInternalServerError, "failed to load gallery")
		return
	}
	respondJSON(w, http.StatusOK, GalleryResponse{Identities: summarizeGallery(g), Stats: stats})
}

// Reload handles POST /gallery/reload.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.provider.Invalidate()
	h.List(w, r)
}

// Remove handles DELETE /gallery/{name}.
func (h *GalleryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.store.Remove(name)
	switch {
	case errors.Is(err, gallery.ErrInvalidIdentity):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fs.ErrNotExist):
		respondError(w, http.StatusNotFound, "identity not found")
		return
	case err != nil:
		h.log.WithError(err).WithField("identity", sanitizeForLog(name)).Error("removing identity")
		respondError(w, http.StatusInternalServerError, "failed to remove identity")
		return
	}

	h.provider.Invalidate()
	h.log.WithField("identity", sanitizeForLog(name)).Info("identity removed")
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
