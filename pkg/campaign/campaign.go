// Пакет campaign продвигает опубликованную статью:
// конкурентная отправка анонсов в настроенные соцсети
// и письмо подписчикам рассылки.
package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/mailer"
	"go.uber.org/zap"
)

// Campaigner запускает продвижение статьи.
type Campaigner interface {
	Campaign(ctx context.Context, a *domain.Article) error
}

// Announcement - анонс статьи для соцсети.
type Announcement struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Config - зависимости сервиса продвижения.
type Config struct {
	// Targets - имя соцсети -> адрес вебхука.
	// Незаполненные цели просто пропускаются.
	Targets   map[string]string
	Mailer    mailer.Mailer
	Logger    *zap.Logger
	Authority string
}

// Service рассылает анонсы. Каждая цель - best effort:
// ошибка логируется по цели и не мешает остальным.
type Service struct {
	targets   map[string]string
	mailer    mailer.Mailer
	logger    *zap.Logger
	authority string
	client    *http.Client
}

// New возвращает [*Service].
func New(cfg Config) *Service {
	return &Service{
		targets:   cfg.Targets,
		mailer:    cfg.Mailer,
		logger:    cfg.Logger,
		authority: cfg.Authority,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type outcome struct {
	target string
	err    error
}

// Campaign конкурентно отправляет анонс статьи во все
// настроенные цели и письмо подписчикам. Возвращается
// первая из ошибок, все ошибки логируются по целям.
func (s *Service) Campaign(ctx context.Context, a *domain.Article) error {
	ann := Announcement{
		Title: a.Title,
		URL:   s.authority + "/articles/" + a.Slug,
	}

	ch := make(chan outcome, len(s.targets)+1)

	for name, url := range s.targets {
		if url == "" {
			continue
		}
		go func(name, url string) {
			ch <- outcome{name, s.post(ctx, url, ann)}
		}(name, url)
	}
	go func() {
		ch <- outcome{"newsletter", s.newsletter(ctx, a, ann)}
	}()

	n := 1
	for _, url := range s.targets {
		if url != "" {
			n++
		}
	}

	var first error
	for i := 0; i < n; i++ {
		o := <-ch
		if o.err == nil {
			continue
		}
		s.logger.Error("campaign target failed",
			zap.String("target", o.target),
			zap.String("slug", a.Slug),
			zap.Error(o.err))
		if first == nil {
			first = fmt.Errorf("campaign %q via %s: %w", a.Slug, o.target, o.err)
		}
	}

	return first
}

// newsletter отправляет письмо-анонс. Получатели не
// перечисляются - почтовый сервис рассылает всем
// подписчикам темы.
func (s *Service) newsletter(ctx context.Context, a *domain.Article, ann Announcement) error {
	model := struct {
		Subject    string `json:"subject"`
		Teaser     string `json:"teaser"`
		TeaserHTML string `json:"teaserHtml,omitempty"`
		Permalink  string `json:"permalink"`
	}{
		Subject:    a.Title,
		Teaser:     "Fresh content on the blog!",
		TeaserHTML: a.TeaserHTML,
		Permalink:  ann.URL,
	}

	return s.mailer.Send(ctx, nil, "article-published", model)
}

func (s *Service) post(ctx context.Context, url string, ann Announcement) error {
	b, err := json.Marshal(ann)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return nil
}
