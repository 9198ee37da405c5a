package idempotency

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type outcomeRecorder struct {
	outcomes []string
}

func (r *outcomeRecorder) RecordRequest(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func completeHandler(calls *int32, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func doComplete(t *testing.T, h http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/cart/complete", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard_WithoutKeyPassesThrough(t *testing.T) {
	var calls int32
	guard := NewGuard(memory.NewIdempotencyRepository())
	h := guard.Middleware(completeHandler(&calls, http.StatusOK, `{"type":"order"}`))

	doComplete(t, h, "", `{}`)
	doComplete(t, h, "", `{}`)

	require.EqualValues(t, 2, calls)
}

func TestGuard_ReplaysStoredResponse(t *testing.T) {
	var calls int32
	recorder := &outcomeRecorder{}
	guard := NewGuard(memory.NewIdempotencyRepository(), WithRequestRecorder(recorder))
	h := guard.Middleware(completeHandler(&calls, http.StatusOK, `{"type":"order","redirect":"/zw/order/confirmed/order_1"}`))

	first := doComplete(t, h, "checkout-1", `{}`)
	require.Equal(t, http.StatusOK, first.Code)
	require.Empty(t, first.Header().Get(HeaderReplayed))

	second := doComplete(t, h, "checkout-1", `{}`)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get(HeaderReplayed))
	require.JSONEq(t, first.Body.String(), second.Body.String())

	require.EqualValues(t, 1, calls)
	require.Equal(t, []string{OutcomeExecuted, OutcomeReplayed}, recorder.outcomes)
}

func TestGuard_ReplaysFailure(t *testing.T) {
	var calls int32
	guard := NewGuard(memory.NewIdempotencyRepository())
	h := guard.Middleware(completeHandler(&calls, http.StatusBadGateway, `{"error":"Payment declined."}`))

	doComplete(t, h, "checkout-2", `{}`)
	replay := doComplete(t, h, "checkout-2", `{}`)

	require.Equal(t, http.StatusBadGateway, replay.Code)
	require.JSONEq(t, `{"error":"Payment declined."}`, replay.Body.String())
	require.EqualValues(t, 1, calls)
}

func TestGuard_HashMismatch(t *testing.T) {
	var calls int32
	guard := NewGuard(memory.NewIdempotencyRepository())
	h := guard.Middleware(completeHandler(&calls, http.StatusOK, `{}`))

	doComplete(t, h, "checkout-3", `{"a":1}`)
	res := doComplete(t, h, "checkout-3", `{"a":2}`)

	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.EqualValues(t, 1, calls)
}

func TestGuard_InProgress(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	req := httptest.NewRequest(http.MethodPost, "/api/cart/complete", nil)
	_, err := repo.CreateProcessing("checkout-4", RequestHash(req, []byte(`{}`)), time.Now().Add(time.Hour))
	require.NoError(t, err)

	var calls int32
	h := NewGuard(repo, WithScopeCookies()).Middleware(completeHandler(&calls, http.StatusOK, `{}`))
	res := doComplete(t, h, "checkout-4", `{}`)

	require.Equal(t, http.StatusConflict, res.Code)
	require.Zero(t, calls)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Contains(t, payload["error"], "already processing")
}

func TestGuard_RepositoryFailure(t *testing.T) {
	var calls int32
	h := NewGuard(failingRepo{}).Middleware(completeHandler(&calls, http.StatusOK, `{}`))

	res := doComplete(t, h, "checkout-5", `{}`)
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Zero(t, calls)
}

func TestRequestHash_DependsOnPathAndBody(t *testing.T) {
	a := httptest.NewRequest(http.MethodPost, "/api/cart/complete", nil)
	b := httptest.NewRequest(http.MethodPost, "/api/cart/promotions", nil)

	require.Equal(t, RequestHash(a, []byte("x")), RequestHash(a, []byte("x")))
	require.NotEqual(t, RequestHash(a, []byte("x")), RequestHash(a, []byte("y")))
	require.NotEqual(t, RequestHash(a, []byte("x")), RequestHash(b, []byte("x")))
}

func TestRequestHash_DependsOnScopeCookies(t *testing.T) {
	a := httptest.NewRequest(http.MethodPost, "/api/cart/complete", nil)
	a.AddCookie(&http.Cookie{Name: session.CartCookieName, Value: "cart_a"})
	b := httptest.NewRequest(http.MethodPost, "/api/cart/complete", nil)
	b.AddCookie(&http.Cookie{Name: session.CartCookieName, Value: "cart_b"})

	require.NotEqual(t, RequestHash(a, nil, session.CartCookieName), RequestHash(b, nil, session.CartCookieName))
	require.Equal(t, RequestHash(a, nil), RequestHash(b, nil))
}

func TestGuard_SameKeyFromAnotherCart(t *testing.T) {
	var calls int32
	h := NewGuard(memory.NewIdempotencyRepository()).Middleware(completeHandler(&calls, http.StatusOK, `{"type":"order"}`))

	send := func(cartID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/complete", nil)
		req.Header.Set(HeaderKey, "checkout-6")
		req.AddCookie(&http.Cookie{Name: session.CartCookieName, Value: cartID})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("cart_a").Code)
	res := send("cart_b")
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Empty(t, res.Header().Get(HeaderReplayed))
	require.EqualValues(t, 1, calls)
}

func TestGuard_ReplaysSetCookie(t *testing.T) {
	var calls int32
	h := NewGuard(memory.NewIdempotencyRepository()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.SetCookie(w, &http.Cookie{Name: session.CartCookieName, Value: "", Path: "/", MaxAge: -1})
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"type":"order"}`)
	}))

	first := doComplete(t, h, "checkout-7", "")
	replay := doComplete(t, h, "checkout-7", "")

	require.Equal(t, "true", replay.Header().Get(HeaderReplayed))
	require.Equal(t, first.Header().Values("Set-Cookie"), replay.Header().Values("Set-Cookie"))
	require.JSONEq(t, `{"type":"order"}`, replay.Body.String())
	require.EqualValues(t, 1, calls)
}

func TestGuard_PanicReleasesKey(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	h := NewGuard(repo).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("backend client bug")
	}))

	require.Panics(t, func() { doComplete(t, h, "checkout-8", "") })

	record, err := repo.Get("checkout-8")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusFailed, record.Status)
	require.Equal(t, http.StatusInternalServerError, record.HTTPStatus)

	var calls int32
	replay := NewGuard(repo).Middleware(completeHandler(&calls, http.StatusOK, `{}`))
	res := doComplete(t, replay, "checkout-8", "")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Equal(t, "true", res.Header().Get(HeaderReplayed))
	require.Zero(t, calls)
}

func TestDecodeResponse_PlainBody(t *testing.T) {
	cookies, body := decodeResponse([]byte(`{"type":"order"}`))
	require.Nil(t, cookies)
	require.JSONEq(t, `{"type":"order"}`, string(body))
}

type failingRepo struct{}

func (failingRepo) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, errors.New("db down")
}

func (failingRepo) Get(string) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, errors.New("db down")
}

func (failingRepo) MarkDone(string, []byte, int) error   { return nil }
func (failingRepo) MarkFailed(string, []byte, int) error { return nil }

func (failingRepo) DeleteExpired(time.Time, int) (int, error) { return 0, nil }
