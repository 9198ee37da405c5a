package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// errorPayload — формат тела ошибки store API.
type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func decodeBackendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	be := &domain.BackendError{Status: resp.StatusCode}
	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		be.Type = payload.Type
		be.Message = payload.Message
		return be
	}

	be.Message = strings.TrimSpace(string(raw))
	if be.Message == "" {
		be.Message = http.StatusText(resp.StatusCode)
	}
	return be
}

// TranslateError приводит любую ошибку вызова бэкенда к единому виду
// *domain.BackendError с сообщением, пригодным для показа покупателю.
// Отмена контекста и локальные ошибки валидации возвращаются как есть.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) ||
		domain.IsValidation(err) ||
		errors.Is(err, domain.ErrNoActiveCart) ||
		errors.Is(err, domain.ErrRegionNotFound) {
		return err
	}

	if be, ok := domain.AsBackendError(err); ok {
		return &domain.BackendError{
			Status:  be.Status,
			Type:    be.Type,
			Message: sentence(be.Message),
			Err:     be.Err,
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.BackendError{Message: "No response received: " + err.Error(), Err: err}
	}

	return &domain.BackendError{Message: "Error setting up the request: " + err.Error(), Err: err}
}

// sentence делает первую букву заглавной и ставит точку в конце.
func sentence(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "Unknown error."
	}
	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
