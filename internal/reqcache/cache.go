// Package reqcache — кэш чтений коммерческого бэкенда в рамках одного HTTP-запроса.
//
// Кэш явно создаётся middleware на каждый запрос и передаётся через context.Context.
// Одинаковые вызовы (имя функции + аргументы) внутри запроса выполняются один раз,
// параллельные вызовы с тем же ключом ждут общий результат. Ошибки не запоминаются.
// Записи помечаются тегами ("cart", "regions", ...), изменения сбрасывают их через Invalidate.
package reqcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Теги записей кэша.
const (
	TagCart        = "cart"
	TagRegions     = "regions"
	TagProducts    = "products"
	TagCollections = "collections"
)

// Исходы обращения к кэшу (метка метрики).
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeShared = "shared"
)

var errAborted = errors.New("cached call aborted")

// Recorder получает исход каждого обращения к кэшу.
type Recorder interface {
	RecordCacheLookup(outcome string)
}

type entry struct {
	done  chan struct{}
	value any
	err   error
	tags  []string
}

// Cache хранит результаты вызовов одного запроса. Безопасен для конкурентного использования.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	recorder Recorder
}

// New создаёт пустой кэш. recorder может быть nil.
func New(recorder Recorder) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		recorder: recorder,
	}
}

type cacheKey struct{}

// NewContext возвращает контекст, несущий кэш.
func NewContext(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, cacheKey{}, c)
}

// FromContext возвращает кэш запроса или nil.
func FromContext(ctx context.Context) *Cache {
	c, _ := ctx.Value(cacheKey{}).(*Cache)
	return c
}

// Middleware создаёт новый кэш на каждый HTTP-запрос.
func Middleware(recorder Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := NewContext(r.Context(), New(recorder))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Key строит ключ записи из имени функции и её аргументов.
func Key(name string, args ...any) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%#v", arg)
	}
	b.WriteByte(')')
	return b.String()
}

// Do возвращает результат fn для ключа key, вызывая fn не более одного раза на запрос.
// Без кэша в контексте fn вызывается напрямую.
func Do[T any](ctx context.Context, key string, tags []string, fn func(context.Context) (T, error)) (T, error) {
	c := FromContext(ctx)
	if c == nil {
		return fn(ctx)
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return wait[T](ctx, c, e, fn)
	}
	e := &entry{done: make(chan struct{}), tags: tags}
	c.entries[key] = e
	c.mu.Unlock()

	c.record(OutcomeMiss)
	return run(ctx, c, key, e, fn)
}

func run[T any](ctx context.Context, c *Cache, key string, e *entry, fn func(context.Context) (T, error)) (value T, err error) {
	err = errAborted
	defer func() {
		e.value, e.err = value, err
		close(e.done)
		if err != nil {
			c.mu.Lock()
			if c.entries[key] == e {
				delete(c.entries, key)
			}
			c.mu.Unlock()
		}
	}()
	value, err = fn(ctx)
	return value, err
}

func wait[T any](ctx context.Context, c *Cache, e *entry, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	select {
	case <-e.done:
		c.record(OutcomeHit)
	default:
		c.record(OutcomeShared)
		select {
		case <-e.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	if e.err != nil {
		return zero, e.err
	}
	value, ok := e.value.(T)
	if !ok {
		// ключ переиспользован с другим типом результата
		return fn(ctx)
	}
	return value, nil
}

// Invalidate удаляет из кэша запроса все записи, помеченные хотя бы одним из тегов.
func Invalidate(ctx context.Context, tags ...string) int {
	c := FromContext(ctx)
	if c == nil {
		return 0
	}
	return c.Invalidate(tags...)
}

// Invalidate удаляет записи с любым из тегов и возвращает их количество.
func (c *Cache) Invalidate(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if hasAnyTag(e.tags, tags) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len возвращает количество записей (включая выполняющиеся).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) record(outcome string) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(outcome)
	}
}

func hasAnyTag(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
