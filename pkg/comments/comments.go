// Пакет comments реализует конвейер создания комментария:
// валидация, поиск статьи, проверка вложенности, спам-фильтр,
// компиляция разметки, сохранение и рассылка уведомлений.
package comments

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/gravatar"
	"github.com/rtemka/blog/pkg/mailer"
	"github.com/rtemka/blog/pkg/markup"
	"github.com/rtemka/blog/pkg/spamcheck"
	"go.uber.org/zap"
)

// сообщения для пользователя.
const (
	msgPublished       = "Your comment was successfully published!"
	msgArticleNotFound = "Article not found"
	msgThreadDeleted   = "The comment thread has been deleted!"
	msgTooDeep         = "Comments can't be nested that deep!"
	msgSaveFailed      = "An error occurred while posting your comment!"
)

// AvatarFetcher получает метаданные аватара по адресу почты.
type AvatarFetcher interface {
	Fetch(ctx context.Context, email string) (gravatar.Image, error)
}

// Result - итог конвейера: код ответа, сообщения для
// пользователя и, при успехе, комментарий.
type Result struct {
	Code     int      `json:"-"`
	Messages []string `json:"messages"`
	Comment  any      `json:"comment,omitempty"`
}

// Config - зависимости сервиса комментариев.
type Config struct {
	Repo      domain.Repository
	Filter    *spamcheck.Filter
	Markup    *markup.Compiler
	Gravatar  AvatarFetcher
	Mailer    mailer.Mailer
	Logger    *zap.Logger
	Authority string
}

// Service - сервис комментариев.
type Service struct {
	repo      domain.Repository
	filter    *spamcheck.Filter
	markup    *markup.Compiler
	gravatar  AvatarFetcher
	mailer    mailer.Mailer
	logger    *zap.Logger
	authority string
	now       func() time.Time

	wg sync.WaitGroup // фоновые уведомления
}

// New возвращает [*Service].
func New(cfg Config) *Service {
	return &Service{
		repo:      cfg.Repo,
		filter:    cfg.Filter,
		markup:    cfg.Markup,
		gravatar:  cfg.Gravatar,
		mailer:    cfg.Mailer,
		logger:    cfg.Logger,
		authority: cfg.Authority,
		now:       time.Now,
	}
}

// Wait дожидается завершения фоновых уведомлений.
// Нужен для корректного завершения сервера и для тестов.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Create проводит входные данные через конвейер создания
// комментария к статье slug. Любой исход выражается через
// [Result]; спам намеренно маскируется под успешную
// публикацию, чтобы не подсказывать спамеру, что его
// комментарий отброшен.
func (s *Service) Create(ctx context.Context, slug string, input domain.CommentInput) Result {
	if msgs := input.Validate(); len(msgs) > 0 {
		return Result{Code: http.StatusBadRequest, Messages: msgs}
	}

	article, err := s.repo.ArticleBySlug(ctx, slug, domain.StatusPublished)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{Code: http.StatusNotFound, Messages: []string{msgArticleNotFound}}
	}
	if err != nil {
		s.logger.Error("article lookup failed", zap.String("slug", slug), zap.Error(err))
		return Result{Code: http.StatusBadRequest, Messages: []string{msgSaveFailed}}
	}

	if input.Parent != 0 {
		parent := findComment(article.Comments, input.Parent)
		if parent == nil {
			return Result{Code: http.StatusNotFound, Messages: []string{msgThreadDeleted}}
		}
		if parent.ParentID != 0 {
			return Result{Code: http.StatusBadRequest, Messages: []string{msgTooDeep}}
		}
	}

	if s.filter.Banned(input) {
		// ничего не сохраняем и не рассылаем, но отвечаем
		// как при успехе, возвращая несохраненную модель
		s.logger.Info("spam comment rejected",
			zap.String("slug", slug), zap.String("author", input.Author))
		return Result{Code: http.StatusOK, Messages: []string{msgPublished}, Comment: input}
	}

	html, err := s.markup.Compile(input.Content, markup.Options{
		Markdown:    true,
		DeferImages: true,
		Externalize: true,
	})
	if err != nil {
		s.logger.Error("comment markup failed", zap.String("slug", slug), zap.Error(err))
		return Result{Code: http.StatusBadRequest, Messages: []string{msgSaveFailed}}
	}

	c := domain.Comment{
		ArticleID:   article.ID,
		ParentID:    input.Parent,
		Author:      input.Author,
		Email:       input.Email,
		Site:        input.Site,
		Content:     input.Content,
		ContentHTML: html,
		Created:     s.now().Unix(),
	}
	if _, err := s.repo.AddComment(ctx, article.ID, &c); err != nil {
		s.logger.Error("comment save failed", zap.String("slug", slug), zap.Error(err))
		return Result{Code: http.StatusBadRequest, Messages: []string{msgSaveFailed}}
	}

	// подписка комментатора - best effort, на исход не влияет
	err = s.mailer.AddSubscriber(ctx, mailer.Subscriber{
		Email:  c.Email,
		Name:   c.Author,
		Source: "comment",
	})
	if err != nil {
		s.logger.Warn("subscriber registration failed",
			zap.String("email", c.Email), zap.Error(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.notify(article, c)
	}()

	return Result{Code: http.StatusOK, Messages: []string{msgPublished}, Comment: domain.View(c)}
}

func findComment(comments []domain.Comment, id int64) *domain.Comment {
	for i := range comments {
		if comments[i].ID == id {
			return &comments[i]
		}
	}
	return nil
}
