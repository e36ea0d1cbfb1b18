package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/altafino/attachment-store/internal/attachment"
	"github.com/altafino/attachment-store/internal/exchange"
	"github.com/altafino/attachment-store/internal/manager"
	"github.com/altafino/attachment-store/internal/storage"
)

// multipart parts beyond this are spooled to temporary files
const maxUploadMemory = 8 << 20

// Metadata is the JSON view of a stored attachment
type Metadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func metadataOf(a attachment.Attachment) Metadata {
	return Metadata{
		ID:          a.ID(),
		Title:       a.Title(),
		ContentType: a.ContentType(),
		UploadedAt:  a.UploadedAt(),
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ids": s.manager.ListIDs()})
}

// lookup writes the error response itself and returns nil when the
// attachment cannot be served
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) attachment.Attachment {
	id := mux.Vars(r)["id"]

	a, found, err := s.manager.Get(id)
	if err != nil {
		s.logger.Error("failed to load attachment", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "failed to load attachment")
		return nil
	}
	if !found {
		sendError(w, http.StatusNotFound, "attachment not found: "+id)
		return nil
	}
	return a
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	a := s.lookup(w, r)
	if a == nil {
		return
	}

	rc, err := a.Open()
	if err != nil {
		s.logger.Error("failed to open attachment content", "id", a.ID(), "error", err)
		sendError(w, http.StatusInternalServerError, "failed to open attachment")
		return
	}
	defer rc.Close()

	contentType := a.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Title()}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("failed to stream attachment", "id", a.ID(), "error", err)
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if a := s.lookup(w, r); a != nil {
		writeJSON(w, http.StatusOK, metadataOf(a))
	}
}

func (s *Server) handleEmbedded(w http.ResponseWriter, r *http.Request) {
	a := s.lookup(w, r)
	if a == nil {
		return
	}

	embedded, err := exchange.Embed(a)
	if err != nil {
		s.logger.Error("failed to embed attachment", "id", a.ID(), "error", err)
		sendError(w, http.StatusInternalServerError, "failed to read attachment")
		return
	}
	writeJSON(w, http.StatusOK, embedded)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, http.StatusRequestEntityTooLarge, "upload exceeds maximum size")
			return
		}
		sendError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		sendError(w, http.StatusBadRequest, "missing form file \"file\"")
		return
	}

	id := r.FormValue("id")
	if id == "" {
		id = uuid.NewString()
	}

	upload, err := attachment.NewUpload(id, files[0])
	if err != nil {
		s.sendCreateError(w, id, err)
		return
	}
	s.create(w, upload)
}

func (s *Server) handleCreateEmbedded(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)

	var embedded exchange.Embedded
	if err := json.NewDecoder(r.Body).Decode(&embedded); err != nil {
		sendError(w, http.StatusBadRequest, "invalid embedded attachment: "+err.Error())
		return
	}

	stored, err := embedded.Read(exchange.StoreCentrally{Manager: s.manager})
	if err != nil {
		s.sendCreateError(w, "", err)
		return
	}
	s.created(w, stored)
}

func (s *Server) create(w http.ResponseWriter, a attachment.Attachment) {
	stored, err := s.manager.Create(a)
	if err != nil {
		s.sendCreateError(w, a.ID(), err)
		return
	}
	s.created(w, stored)
}

func (s *Server) created(w http.ResponseWriter, a attachment.Attachment) {
	s.logger.Info("attachment created", "id", a.ID(), "title", a.Title())
	w.Header().Set("Location", "/attachments/"+a.ID())
	writeJSON(w, http.StatusCreated, metadataOf(a))
}

func (s *Server) sendCreateError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, manager.ErrAlreadyExists),
		errors.Is(err, storage.ErrAlreadyStored):
		sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, attachment.ErrInvalidID),
		errors.Is(err, storage.ErrReservedID),
		errors.Is(err, attachment.ErrEmptyID),
		errors.Is(err, attachment.ErrEmptyTitle),
		errors.Is(err, attachment.ErrInvalidBase64):
		sendError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("failed to create attachment", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "failed to store attachment")
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	change, err := s.manager.Remove(id)
	if err != nil {
		s.logger.Error("failed to remove attachment", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "failed to remove attachment")
		return
	}
	if !change.IsChanged() {
		sendError(w, http.StatusNotFound, "attachment not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
