package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout        = 10 * time.Second
	publishableKeyHeader  = "x-publishable-api-key"
	maxErrorBodyBytes     = 64 << 10
	defaultRequestTimeout = 30 * time.Second
)

// Observer получает длительность и результат каждого вызова бэкенда.
type Observer interface {
	ObserveBackendCall(operation string, duration time.Duration, err error)
}

// Config задаёт адрес и ключ витрины коммерческого бэкенда.
type Config struct {
	BaseURL        string
	PublishableKey string
	UserAgent      string
	Timeout        time.Duration
}

// Client — HTTP-клиент store API коммерческого бэкенда (регионы, каталог, корзина, оплата).
type Client struct {
	baseURL        string
	publishableKey string
	userAgent      string
	httpClient     *http.Client
	observer       Observer
	logger         *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (используется в тестах).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithObserver задаёт получателя метрик вызовов.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithLogger задаёт logger клиента.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создаёт клиента. Базовый адрес нормализуется: хвостовые "/" убираются.
func NewClient(cfg Config, options ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("commerce backend base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse commerce backend url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:        base,
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
		userAgent:      strings.TrimSpace(cfg.UserAgent),
		httpClient:     &http.Client{Timeout: timeout},
		logger:         log.WithField("component", "commerce-backend"),
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

type authTokenKey struct{}

// WithAuthToken кладёт токен покупателя в контекст; клиент передаст его
// в заголовке Authorization.
func WithAuthToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, authTokenKey{}, token)
}

func authToken(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey{}).(string)
	return token
}

// Ping проверяет доступность бэкенда (используется health-check'ом).
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce backend health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("commerce backend health: status %d", resp.StatusCode)
	}
	return nil
}

// do выполняет запрос к store API и декодирует JSON-ответ в out (если out != nil).
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveBackendCall(operation, time.Since(start), err)
		}
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("marshal %s request: %w", operation, marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		req.Header.Set(publishableKeyHeader, c.publishableKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token := authToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeBackendError(resp)
	}

	c.logger.WithFields(log.Fields{
		"operation": operation,
		"status":    resp.StatusCode,
		"duration":  time.Since(start).String(),
	}).Debug("commerce backend call")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
