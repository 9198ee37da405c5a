package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveCart — в запросе нет идентификатора корзины.
	ErrNoActiveCart = errors.New("no cart found")
	// ErrRegionNotFound — регион не удалось определить даже через fallback.
	ErrRegionNotFound = errors.New("region not found")
	// ErrCountryCodeRequired — не передан код страны.
	ErrCountryCodeRequired = errors.New("country_code is required")
	// ErrVariantIDRequired — не передан идентификатор варианта товара.
	ErrVariantIDRequired = errors.New("missing variant ID")
	// ErrQuantityInvalid — количество позиции должно быть больше нуля.
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// ErrLineItemIDRequired — не передан идентификатор позиции корзины.
	ErrLineItemIDRequired = errors.New("line item id is required")
	// ErrShippingOptionRequired — не передан способ доставки.
	ErrShippingOptionRequired = errors.New("shipping option id is required")
	// ErrPaymentProviderRequired — не передан платёжный провайдер.
	ErrPaymentProviderRequired = errors.New("payment provider is required")
	// ErrEmailRequired — не передан email покупателя.
	ErrEmailRequired = errors.New("email is required")
	// ErrAddressIncomplete — в адресе не хватает обязательных полей.
	ErrAddressIncomplete = errors.New("address is incomplete")
	// ErrEmptyUpdate — обновление корзины не содержит изменений.
	ErrEmptyUpdate = errors.New("cart update is empty")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — не удалось посчитать хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — записи для ключа нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// BackendError — нормализованная ошибка коммерческого бэкенда.
// Status == 0 означает, что ответ от бэкенда не получен.
type BackendError struct {
	Status  int    `json:"status,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	// Err — исходная транспортная ошибка, если ответа не было.
	Err error `json:"-"`
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("commerce backend: status %d: %s", e.Status, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NotFound сообщает, что бэкенд ответил 404.
func (e *BackendError) NotFound() bool {
	return e.Status == 404
}

// AsBackendError извлекает BackendError из цепочки ошибок.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsValidation сообщает, что ошибка вызвана некорректным запросом клиента.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrCountryCodeRequired,
		ErrVariantIDRequired,
		ErrQuantityInvalid,
		ErrLineItemIDRequired,
		ErrShippingOptionRequired,
		ErrPaymentProviderRequired,
		ErrEmailRequired,
		ErrAddressIncomplete,
		ErrEmptyUpdate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
