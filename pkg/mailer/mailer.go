// Пакет mailer - клиент внешнего почтового сервиса:
// регистрация подписчиков и отправка писем по шаблону.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Subscriber - подписчик рассылки.
type Subscriber struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Mailer - контракт на работу с почтовым сервисом.
// Пустой список recipients означает рассылку всем
// подписчикам соответствующей темы.
type Mailer interface {
	AddSubscriber(ctx context.Context, s Subscriber) error
	Send(ctx context.Context, recipients []string, template string, model any) error
}

// Client отправляет запросы почтовому сервису по HTTP.
type Client struct {
	url    string
	client *http.Client
}

// NewClient возвращает [*Client] для сервиса по адресу url.
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// AddSubscriber регистрирует подписчика.
func (c *Client) AddSubscriber(ctx context.Context, s Subscriber) error {
	return c.post(ctx, c.url+"/subscribers", s)
}

// Send отправляет письмо по шаблону template с моделью model.
func (c *Client) Send(ctx context.Context, recipients []string, template string, model any) error {
	payload := struct {
		Recipients []string `json:"recipients,omitempty"`
		Template   string   `json:"template"`
		Model      any      `json:"model"`
	}{recipients, template, model}

	return c.post(ctx, c.url+"/send", payload)
}

func (c *Client) post(ctx context.Context, u string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mailer: %s: unexpected status %s", u, resp.Status)
	}

	return nil
}

// Noop - заглушка для разработки и тестов.
type Noop struct{}

func (Noop) AddSubscriber(context.Context, Subscriber) error   { return nil }
func (Noop) Send(context.Context, []string, string, any) error { return nil }
