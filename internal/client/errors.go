package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Ошибки шлюза.
var (
	// ErrHTTP — клиент ответил не 2xx или запрос не удался.
	ErrHTTP = errors.New("client http request failed")

	// ErrNoEndpoint — у пользователя не настроен нужный endpoint.
	ErrNoEndpoint = errors.New("client endpoint not configured")
)

// HTTPError — ответ клиента с кодом вне 2xx.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("client http %d from %s: %s", e.StatusCode, e.Endpoint, truncate(string(e.Body), 200))
}

// Is позволяет сравнивать через errors.Is(err, ErrHTTP).
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// ResponseBody возвращает тело ответа как JSON. Не-JSON ответ
// оборачивается в {"status_code": ..., "body": "..."}.
func (e *HTTPError) ResponseBody() json.RawMessage {
	if json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	b, _ := json.Marshal(map[string]any{
		"status_code": e.StatusCode,
		"body":        string(e.Body),
	})
	return b
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
