package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const maxBodyBytes = 1 << 20

// requestError — некорректный параметр или тело запроса.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusFor выбирает HTTP-статус для ошибки сервиса.
// 4xx бэкенда передаются клиенту как есть, остальные ответы бэкенда дают 502.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr), domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoActiveCart), errors.Is(err, domain.ErrRegionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if be, ok := domain.AsBackendError(err); ok {
		if be.NotFound() {
			return http.StatusNotFound
		}
		if be.Status >= 400 && be.Status < 500 {
			return be.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fail пишет ошибку сервиса. Ошибки сервера логируются с полями запроса.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if be, ok := domain.AsBackendError(err); ok {
		message = be.Message
	}

	if status >= http.StatusInternalServerError {
		a.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		}).Error("request failed")
	}
	writeError(w, status, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("malformed request body: %v", err)
	}
	return nil
}

// countryCode читает код страны из пути.
func countryCode(r *http.Request) (string, error) {
	code := domain.NormalizeCountryCode(chi.URLParam(r, "country"))
	if code == "" {
		return "", domain.ErrCountryCodeRequired
	}
	return code, nil
}

// intParam читает положительное целое из query; пустое значение даёт def.
func intParam(r *http.Request, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	if max > 0 && n > max {
		return 0, badRequest("%s must not exceed %d", name, max)
	}
	return n, nil
}
