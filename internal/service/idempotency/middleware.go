package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const (
	// HeaderKey — заголовок с ключом идемпотентности.
	HeaderKey = "Idempotency-Key"
	// HeaderReplayed выставляется в ответах, отданных из сохранённой записи.
	HeaderReplayed = "Idempotent-Replayed"
	// DefaultTTL — срок хранения ответа по ключу.
	DefaultTTL = 24 * time.Hour

	maxRequestBodyBytes = 1 << 20
)

// Исходы запросов с ключом для метрик.
const (
	OutcomeExecuted   = "executed"
	OutcomeReplayed   = "replayed"
	OutcomeInProgress = "in_progress"
	OutcomeMismatch   = "mismatch"
	OutcomeError      = "error"
)

// RequestRecorder получает исходы запросов с ключом идемпотентности.
type RequestRecorder interface {
	RecordRequest(outcome string)
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithTTL задаёт срок хранения ответа.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithRequestRecorder задаёт получателя метрик.
func WithRequestRecorder(recorder RequestRecorder) GuardOption {
	return func(g *Guard) {
		g.recorder = recorder
	}
}

// WithScopeCookies задаёт cookies, значения которых входят в отпечаток запроса.
// Один и тот же ключ из разных сессий тогда считается другим запросом.
func WithScopeCookies(names ...string) GuardOption {
	return func(g *Guard) {
		g.scopeCookies = names
	}
}

// WithGuardLogger задаёт logger.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Guard сохраняет ответ изменяющего запроса по Idempotency-Key и отдаёт его
// повторно при ретраях клиента. Запросы без ключа проходят как есть.
type Guard struct {
	repo     domain.IdempotencyRepository
	ttl      time.Duration
	recorder RequestRecorder
	logger   *log.Entry
	now      func() time.Time

	scopeCookies []string
}

// NewGuard создаёт Guard поверх репозитория ключей.
func NewGuard(repo domain.IdempotencyRepository, options ...GuardOption) *Guard {
	g := &Guard{
		repo:   repo,
		ttl:    DefaultTTL,
		logger: log.WithField("component", "idempotency"),
		now:    func() time.Time { return time.Now().UTC() },

		scopeCookies: []string{session.CartCookieName, session.AuthCookieName},
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Middleware оборачивает обработчик.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderKey))
		if g == nil || g.repo == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		logger := g.logger.WithField("idempotency_key", key)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
		if err != nil {
			g.record(OutcomeError)
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		record, err := g.repo.CreateProcessing(key, RequestHash(r, body, g.scopeCookies...), g.now().Add(g.ttl))
		if err != nil {
			g.replay(w, logger, record, err)
			return
		}

		buf := &bytes.Buffer{}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(buf)

		completed := false
		defer func() {
			if completed {
				return
			}
			// Обработчик упал: ключ не должен остаться в processing до истечения TTL.
			body, _ := json.Marshal(map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
			if err := g.repo.MarkFailed(key, encodeResponse(nil, body), http.StatusInternalServerError); err != nil {
				logger.WithError(err).Warn("failed to release idempotency key after panic")
			}
		}()

		next.ServeHTTP(ww, r)
		completed = true
		g.record(OutcomeExecuted)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		stored := encodeResponse(w.Header().Values("Set-Cookie"), buf.Bytes())
		if status >= http.StatusBadRequest {
			err = g.repo.MarkFailed(key, stored, status)
		} else {
			err = g.repo.MarkDone(key, stored, status)
		}
		if err != nil {
			logger.WithError(err).Warn("failed to store idempotent response")
		}
	})
}

func (g *Guard) replay(w http.ResponseWriter, logger *log.Entry, record domain.IdempotencyRecord, createErr error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		g.record(OutcomeMismatch)
		writeError(w, http.StatusUnprocessableEntity, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			g.record(OutcomeReplayed)
			status := record.HTTPStatus
			if status == 0 {
				status = http.StatusOK
			}
			cookies, body := decodeResponse(record.ResponseBody)
			for _, cookie := range cookies {
				w.Header().Add("Set-Cookie", cookie)
			}
			w.Header().Set(HeaderReplayed, "true")
			if len(body) > 0 {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(status)
			_, _ = w.Write(body)
		case domain.IdempotencyStatusProcessing:
			g.record(OutcomeInProgress)
			writeError(w, http.StatusConflict, "request with the same idempotency key is already processing")
		default:
			g.record(OutcomeError)
			writeError(w, http.StatusInternalServerError, "unknown idempotency record status")
		}
	default:
		g.record(OutcomeError)
		logger.WithError(createErr).Warn("failed to create idempotency record")
		writeError(w, http.StatusInternalServerError, "failed to initialize idempotency request")
	}
}

func (g *Guard) record(outcome string) {
	if g.recorder != nil {
		g.recorder.RecordRequest(outcome)
	}
}

// RequestHash строит отпечаток запроса: метод, путь, тело и значения
// перечисленных cookies (отсутствующая cookie даёт пустое значение).
func RequestHash(r *http.Request, body []byte, cookies ...string) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s:%s:", r.Method, r.URL.Path)
	for _, name := range cookies {
		value := ""
		if c, err := r.Cookie(name); err == nil {
			value = c.Value
		}
		_, _ = fmt.Fprintf(h, "%s=%q;", name, value)
	}
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// storedResponse — то, что сохраняется по ключу: тело ответа и его Set-Cookie.
type storedResponse struct {
	SetCookie []string `json:"set_cookie,omitempty"`
	Body      []byte   `json:"body"`
}

func encodeResponse(setCookie []string, body []byte) []byte {
	raw, err := json.Marshal(storedResponse{SetCookie: setCookie, Body: body})
	if err != nil {
		return body
	}
	return raw
}

// decodeResponse разбирает сохранённый ответ. Записи без обёртки отдаются как тело.
func decodeResponse(raw []byte) ([]string, []byte) {
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil || stored.Body == nil {
		return nil, raw
	}
	return stored.SetCookie, stored.Body
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
