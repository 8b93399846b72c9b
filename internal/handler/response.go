package handler

// RESPONSE HELPERS:
// Two kinds of clients talk to this server. Browsers get HTML pages and
// redirects; the artist autocomplete gets JSON. Both sides share one error
// mapping so a service error means the same status everywhere:
//
//	ErrValidation   → 422 (form re-rendered) / 400 (JSON)
//	ErrUnauthorized → 401
//	ErrConflict     → 409
//	ErrNotFound     → 404 page
//	ErrForbidden    → flash + redirect home
//	anything else   → logged, generic 500, no details leaked

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/flash"
)

// ErrorResponse is the JSON error body: {"error": "not_found", "message": "..."}.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable type
	Message string `json:"message"` // shown to the user
}

// writeJSON sets headers, then status, then body. Headers changed after the
// first Write are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a JSON error response.
//
// errors.As walks the wrap chain, so fmt.Errorf("...: %w", appErr) from the
// service layer still yields the AppError and its user-facing message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Ocorreu um erro interno.",
	})
}

// formStatus reports whether err is something a form page shows next to the
// form (bad input, bad credentials, duplicate). It returns the status to
// re-render with and the message to display.
func formStatus(err error) (int, string, bool) {
	var status int
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	default:
		return 0, "", false
	}
	return status, apperror.MessageOf(err, "Dados inválidos."), true
}

type errorPage struct {
	Title   string
	Message string
}

// NotFound renders the 404 page.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusNotFound, pageError, errorPage{
		Title:   "Página não encontrada",
		Message: "O endereço que você procurou não existe ou foi removido.",
	})
}

// Error is the fallback for errors a page does not handle itself.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		rd.NotFound(w, r)
	case errors.Is(err, apperror.ErrForbidden):
		rd.flashes.Add(w, flash.Danger, apperror.MessageOf(err, "Acesso negado."))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, apperror.ErrUnauthorized):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		rd.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		rd.Render(w, r, http.StatusInternalServerError, pageError, errorPage{
			Title:   "Erro interno",
			Message: "Algo deu errado. Tente novamente em instantes.",
		})
	}
}

// pathID reads the {id} URL parameter. Anything that is not a positive
// integer is reported as NotFound, the same as an id with no row.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound("page", raw)
	}
	return id, nil
}

// formIDs parses every value of a multi-valued form field as an id.
func formIDs(r *http.Request, field, message string) ([]int64, error) {
	values := r.PostForm[field]
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperror.ValidationFailed(field, message)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
