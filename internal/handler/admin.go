package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/lernbot/internal/access"
	"github.com/pavelanni/lernbot/internal/store"
)

type statsResponse struct {
	Users     int `json:"users"`
	Questions int `json:"questions"`
}

type grantRequest struct {
	UserID int64 `json:"user_id"`
	Days   int   `json:"days"`
}

type grantResponse struct {
	UserID int64     `json:"user_id"`
	Until  time.Time `json:"subscription_expiry"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.UserCount(r.Context())
	if err != nil {
		slog.Error("failed to count users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	questions, err := h.store.QuestionCount(r.Context())
	if err != nil {
		slog.Error("failed to count questions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Users: users, Questions: questions})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		slog.Error("failed to get user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == 0 || req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and positive days required")
		return
	}

	until, err := access.Grant(r.Context(), h.store, req.UserID, req.Days, h.now())
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("failed to grant subscription", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, grantResponse{UserID: req.UserID, Until: until})
}

// handleUploadQuestions imports a JSON question file sent as the
// questions_file form field. An unchanged file is reported as skipped.
func (h *Handler) handleUploadQuestions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxEventBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	file, header, err := r.FormFile("questions_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	res, err := store.ImportFile(r.Context(), h.store, path.Base(header.Filename), data)
	if err != nil {
		slog.Error("failed to import questions", "file", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("uploaded questions via admin", "file", res.Name, "count", res.Imported, "skipped", res.Skipped)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ExportAttempts(r.Context())
	if err != nil {
		slog.Error("failed to export attempts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="lernbot-export.json"`)
	writeJSON(w, http.StatusOK, results)
}
