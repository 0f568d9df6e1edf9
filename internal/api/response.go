package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// DetailResponse — тело ответа с ошибкой: {"detail": "..."}.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Detail отправляет ответ с ошибкой в теле {"detail": message}.
func Detail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, DetailResponse{Detail: message})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Detail(w, http.StatusBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Detail(w, http.StatusNotFound, message)
}

// TooManyRequests отправляет ошибку 429 (admission denied).
func TooManyRequests(w http.ResponseWriter, message string) {
	Detail(w, http.StatusTooManyRequests, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Detail(w, http.StatusInternalServerError, "internal server error")
}
