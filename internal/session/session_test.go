package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, cfg Config, req *http.Request, fn func(ctx context.Context)) *httptest.ResponseRecorder {
	t.Helper()
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCookieStore_ReadsCartCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CartCookieName, Value: "cart_1"})

	store := NewCookieStore()
	serve(t, Config{}, req, func(ctx context.Context) {
		id, ok := store.CartID(ctx)
		require.True(t, ok)
		require.Equal(t, "cart_1", id)
	})
}

func TestCookieStore_SetCartIDWritesCookie(t *testing.T) {
	store := NewCookieStore()
	rec := serve(t, Config{Secure: true}, httptest.NewRequest(http.MethodGet, "/", nil), func(ctx context.Context) {
		_, ok := store.CartID(ctx)
		require.False(t, ok)

		store.SetCartID(ctx, "cart_new")
		id, ok := store.CartID(ctx)
		require.True(t, ok)
		require.Equal(t, "cart_new", id)
	})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CartCookieName, cookies[0].Name)
	require.Equal(t, "cart_new", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
	require.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	require.Equal(t, 7*24*60*60, cookies[0].MaxAge)
}

func TestCookieStore_RemoveCartIDExpiresCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CartCookieName, Value: "cart_1"})

	store := NewCookieStore()
	rec := serve(t, Config{}, req, func(ctx context.Context) {
		store.RemoveCartID(ctx)
		_, ok := store.CartID(ctx)
		require.False(t, ok)
	})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}

func TestCookieStore_WithoutSession(t *testing.T) {
	store := NewCookieStore()
	ctx := context.Background()

	_, ok := store.CartID(ctx)
	require.False(t, ok)
	store.SetCartID(ctx, "ignored")
	store.RemoveCartID(ctx)
}
