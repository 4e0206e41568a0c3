package comments

import (
	"context"
	"fmt"
	"strings"
	"time"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/gravatar"
	"github.com/rtemka/blog/pkg/markup"
	"go.uber.org/zap"
)

const notifyTimeout = 30 * time.Second

const excerptLen = 200

// Email - модель письма для шаблона comment-published.
type Email struct {
	Subject string           `json:"subject"`
	Teaser  string           `json:"teaser"`
	Comment EmailComment     `json:"comment"`
	Article EmailArticle     `json:"article"`
	Images  []gravatar.Image `json:"images"`
}

// EmailComment - блок письма про новый комментарий.
type EmailComment struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Excerpt   string `json:"excerpt"`
	Site      string `json:"site,omitempty"`
	Permalink string `json:"permalink"`
}

// EmailArticle - блок письма про статью.
type EmailArticle struct {
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

// именованный тип, чтобы различать результаты
// конкурентных подзадач в канале
type absolutized string

// notify рассылает уведомление о новом комментарии прежним
// участникам ветки. Три подзадачи выполняются конкурентно:
// подбор получателей, абсолютизация HTML и получение
// аватара. Ошибка любой из них отменяет рассылку целиком -
// частичная отправка недопустима.
func (s *Service) notify(article *domain.Article, c domain.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	ch := make(chan any, 3)

	go func() {
		ch <- recipients(article, c)
	}()
	go func() {
		html, err := s.markup.Compile(c.ContentHTML, markup.Options{Absolutize: true})
		if err != nil {
			ch <- fmt.Errorf("absolutize comment html: %w", err)
		} else {
			ch <- absolutized(html)
		}
	}()
	go func() {
		img, err := s.gravatar.Fetch(ctx, c.Email)
		if err != nil {
			ch <- err
		} else {
			ch <- img
		}
	}()

	var recs []string
	var html string
	var img gravatar.Image

	for i := 0; i < 3; i++ {
		switch v := (<-ch).(type) {
		case error:
			s.logger.Error("comment notification aborted",
				zap.String("slug", article.Slug), zap.Error(v))
			return
		case []string:
			recs = v
		case absolutized:
			html = string(v)
		case gravatar.Image:
			img = v
		}
	}

	if len(recs) == 0 {
		return
	}

	permalink := s.authority + "/articles/" + article.Slug
	email := Email{
		Subject: fmt.Sprintf("Fresh comments on %q!", article.Title),
		Teaser:  "Someone posted a comment on a thread you're watching!",
		Comment: EmailComment{
			Author:    c.Author,
			Content:   html,
			Excerpt:   excerpt(html),
			Site:      c.Site,
			Permalink: fmt.Sprintf("%s#comment-%d", permalink, c.ID),
		},
		Article: EmailArticle{
			Title:     article.Title,
			Permalink: permalink,
		},
		Images: []gravatar.Image{img},
	}

	if err := s.mailer.Send(ctx, recs, "comment-published", email); err != nil {
		s.logger.Error("comment notification send failed",
			zap.String("slug", article.Slug), zap.Error(err))
	}
}

// recipients подбирает получателей уведомления: автор статьи
// плюс, для ответа, все участники ветки родителя. Дубликаты
// и адрес самого комментатора исключаются.
func recipients(article *domain.Article, c domain.Comment) []string {
	emails := []string{article.AuthorEmail}

	if c.ParentID != 0 {
		for i := range article.Comments {
			in := article.Comments[i].ID == c.ParentID || // корень ветки
				article.Comments[i].ParentID == c.ParentID // прямые ответы
			if in {
				emails = append(emails, article.Comments[i].Email)
			}
		}
	}

	seen := map[string]struct{}{c.Email: {}}
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if _, ok := seen[e]; ok || e == "" {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}

	return out
}

func excerpt(html string) string {
	text := strings.TrimSpace(strip.StripTags(html))
	r := []rune(text)
	if len(r) <= excerptLen {
		return text
	}
	return string(r[:excerptLen]) + "…"
}
