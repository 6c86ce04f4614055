package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sqlgate/src/app/http/response"
	"sqlgate/src/infra/repo"
)

// NoteHandler serves the notes resource.
type NoteHandler struct {
	notes *repo.NoteRepository
}

// NewNoteHandler constructs a NoteHandler.
func NewNoteHandler(notes *repo.NoteRepository) *NoteHandler {
	return &NoteHandler{notes: notes}
}

type createNoteRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}

type updateNoteRequest struct {
	Body string `json:"body" binding:"required"`
}

// Create handles POST /v1/notes.
func (h *NoteHandler) Create(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	note, err := h.notes.Create(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to create note")
		return
	}
	response.Created(c, note)
}

// Get handles GET /v1/notes/:note_id.
func (h *NoteHandler) Get(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	note, err := h.notes.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNoteNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "note not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load note")
		return
	}
	response.OK(c, note)
}

// List handles GET /v1/notes.
func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.notes.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to list notes")
		return
	}
	response.OK(c, notes)
}

// Update handles PUT /v1/notes/:note_id.
func (h *NoteHandler) Update(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	var req updateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	note, err := h.notes.UpdateBody(c.Request.Context(), id, req.Body)
	if err != nil {
		if errors.Is(err, repo.ErrNoteNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "note not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to update note")
		return
	}
	response.OK(c, note)
}

// Revisions handles GET /v1/notes/:note_id/revisions.
func (h *NoteHandler) Revisions(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	revisions, err := h.notes.Revisions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load revisions")
		return
	}
	response.OK(c, revisions)
}

func noteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("note_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "note_id must be an integer")
		return 0, false
	}
	return id, true
}
