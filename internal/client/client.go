package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
)

// DefaultTimeout — таймаут запроса к клиенту по умолчанию.
const DefaultTimeout = 30 * time.Second

// maxResponseBody — сколько байт ответа читается и сохраняется.
const maxResponseBody = 64 << 10

// Имена endpoint'ов для метрик и логов.
const (
	endpointDecision     = "decision"
	endpointActivity     = "activity"
	endpointNotification = "notification"
)

// Config — конфигурация Client.
type Config struct {
	// Timeout ограничивает каждый запрос (default: DefaultTimeout).
	Timeout time.Duration

	// HTTPClient (default: &http.Client{}).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client — HTTP-шлюз к endpoint'ам клиента.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New создаёт новый Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Notification — тело уведомления клиента.
type Notification struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// PerformDecision просит decider принять решение по узлу.
func (c *Client) PerformDecision(ctx context.Context, user *domain.User, node *domain.Node) error {
	return c.post(ctx, endpointDecision, user.DecisionEndpoint, map[string]any{
		"decision": node,
	})
}

// PerformActivity просит клиента выполнить activity.
func (c *Client) PerformActivity(ctx context.Context, user *domain.User, node *domain.Node) error {
	return c.post(ctx, endpointActivity, user.ActivityEndpoint, map[string]any{
		"activity": node,
	})
}

// Notify сообщает клиенту о терминальной ошибке узла.
func (c *Client) Notify(ctx context.Context, user *domain.User, node *domain.Node, message string, errBody json.RawMessage) error {
	body := map[string]any{
		"notification": Notification{
			ID:      node.ID.String(),
			Name:    node.Name,
			Subject: node.Subject,
			Message: message,
		},
	}
	if len(errBody) > 0 {
		body["error"] = errBody
	}
	return c.post(ctx, endpointNotification, user.NotificationEndpoint, body)
}

// post отправляет JSON и проверяет код ответа.
func (c *Client) post(ctx context.Context, endpoint, url string, payload any) error {
	if url == "" {
		telemetry.ClientRequests.WithLabelValues(endpoint, "no_endpoint").Inc()
		return fmt.Errorf("%w: %s", ErrNoEndpoint, endpoint)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrHTTP, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrHTTP, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.ClientRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%w: %v", ErrHTTP, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		telemetry.ClientRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%w: read response: %v", ErrHTTP, err)
	}

	c.logger.Debug("client request",
		"endpoint", endpoint,
		"status_code", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.ClientRequests.WithLabelValues(endpoint, "http_error").Inc()
		return &HTTPError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	telemetry.ClientRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}
