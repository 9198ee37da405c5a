// Package session хранит идентификатор корзины и токен покупателя в cookies.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// CartCookieName — cookie с идентификатором корзины.
	CartCookieName = "_medusa_cart_id"
	// AuthCookieName — cookie с токеном покупателя.
	AuthCookieName = "_medusa_jwt"

	defaultMaxAge = 7 * 24 * time.Hour
)

// Config задаёт параметры cookies.
type Config struct {
	// Secure выставляет флаг Secure (включается в production).
	Secure bool
	// MaxAge — срок жизни cookie корзины.
	MaxAge time.Duration
}

// Session — состояние покупателя в рамках одного HTTP-запроса.
type Session struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	cfg    Config
	cartID string
}

type sessionKey struct{}

// FromContext возвращает сессию запроса или nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Middleware читает cookies запроса, кладёт сессию в контекст и передаёт
// токен покупателя клиенту бэкенда.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := &Session{w: w, cfg: cfg}
			if c, err := r.Cookie(CartCookieName); err == nil {
				s.cartID = c.Value
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, s)
			if c, err := r.Cookie(AuthCookieName); err == nil {
				ctx = backend.WithAuthToken(ctx, c.Value)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Session) setCookie(value string, maxAge int) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     CartCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// CookieStore реализует domain.CartIDStore поверх сессии из контекста.
// Без сессии в контексте корзины нет, а запись игнорируется.
type CookieStore struct{}

// NewCookieStore создаёт хранилище идентификатора корзины.
func NewCookieStore() CookieStore {
	return CookieStore{}
}

// CartID возвращает идентификатор корзины из cookie.
func (CookieStore) CartID(ctx context.Context) (string, bool) {
	s := FromContext(ctx)
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartID, s.cartID != ""
}

// SetCartID запоминает корзину и выставляет cookie.
func (CookieStore) SetCartID(ctx context.Context, cartID string) {
	s := FromContext(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartID = cartID
	s.setCookie(cartID, int(s.cfg.MaxAge.Seconds()))
}

// RemoveCartID забывает корзину и удаляет cookie.
func (CookieStore) RemoveCartID(ctx context.Context) {
	s := FromContext(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartID = ""
	s.setCookie("", -1)
}

var _ domain.CartIDStore = CookieStore{}
