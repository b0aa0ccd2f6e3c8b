package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"salvage-market/model"
)

// UserHeader carries the authenticated user id set by the gateway in
// front of this service.
const UserHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// base holds what every controller needs to talk HTTP.
type base struct {
	isOperator func(userID string) bool
	logger     *slog.Logger
}

func (b base) actor(r *http.Request) model.Actor {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	return model.Actor{UserID: id, IsOperator: id != "" && b.isOperator(id)}
}

func (b base) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.logger.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error *model.Error `json:"error"`
}

func statusOf(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindAuthorization:
		return http.StatusForbidden
	case model.KindInvalidState:
		return http.StatusConflict
	case model.KindPayment:
		return http.StatusPaymentRequired
	case model.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError renders business errors as they are and hides everything
// else behind a 500.
func (b base) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *model.Error
	if !errors.As(err, &e) {
		b.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		e = &model.Error{Kind: "internal", Message: "internal server error"}
	}
	b.writeJSON(w, statusOf(e.Kind), errorBody{Error: &model.Error{Kind: e.Kind, Message: e.Message, Fields: e.Fields}})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (b base) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		b.writeError(w, r, model.Invalid("body", "malformed JSON: "+err.Error()))
		return false
	}
	return true
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.DebugContext(r.Context(), "http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
