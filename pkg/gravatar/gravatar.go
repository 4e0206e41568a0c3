// Пакет gravatar получает аватары комментаторов.
package gravatar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rtemka/blog/domain"
)

const defaultEndpoint = "https://gravatar.com"

// Image - метаданные аватара для почтового шаблона.
type Image struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client узнает у сервиса gravatar, есть ли у адреса
// почты собственный аватар.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient возвращает [*Client]. Пустой endpoint
// означает официальный сервис gravatar.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch возвращает аватар для адреса почты. Если у адреса
// нет собственного аватара, возвращается сгенерированный
// identicon. Сетевая ошибка возвращается как есть.
func (c *Client) Fetch(ctx context.Context, email string) (Image, error) {
	u := c.endpoint + trimEndpoint(domain.GravatarURL(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return Image{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("gravatar: fetch %q: %w", email, err)
	}
	_ = resp.Body.Close()

	return Image{Name: "gravatar", URL: u}, nil
}

// trimEndpoint отрезает от производного адреса схему и хост,
// чтобы подставить endpoint клиента (важно для тестов).
func trimEndpoint(u string) string {
	const prefix = defaultEndpoint
	if len(u) > len(prefix) && u[:len(prefix)] == prefix {
		return u[len(prefix):]
	}
	return u
}
