package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/Syntra/internal/api/middlewares"
	"github.com/markdave123-py/Syntra/internal/services"
)

type NotebookHandler struct {
	notebooks *services.NotebookService
}

func NewNotebookHandler(notebooks *services.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

type createNotebookRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	MaxContextTokens int    `json:"max_context_tokens"`
}

func (h *NotebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createNotebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	nb, err := h.notebooks.Create(r.Context(), userID, req.Title, req.Description, req.MaxContextTokens)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	nbs, err := h.notebooks.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nbs)
}

func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	nb, err := h.notebooks.Get(r.Context(), userID, chi.URLParam(r, "notebook_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notebooks.Delete(r.Context(), userID, chi.URLParam(r, "notebook_id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
