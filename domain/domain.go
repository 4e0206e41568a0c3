// Пакет domain содержит модели данных блог-платформы
// и операции над ними, не зависящие от хранилища.
package domain

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Статусы статьи.
const (
	StatusDraft     = "draft"
	StatusPublish   = "publish" // запланирована к публикации
	StatusPublished = "published"
)

// TimeFormat - формат отображения времени комментария.
const TimeFormat = "15:04:05 -- 02 January, 2006"

// ErrNotFound когда по запросу не найдены записи.
var ErrNotFound = errors.New("not found")

// ErrMalformedThread когда среди комментариев статьи
// встречается ответ на несуществующий комментарий.
// При соблюдении правила вложенности такого быть не может,
// поэтому это всегда признак повреждённых данных.
var ErrMalformedThread = errors.New("malformed comment thread")

// Article - модель данных статьи блога.
type Article struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Publication int64     `json:"publication,omitempty"` // unix-время запланированной публикации, 0 - не задано
	TeaserHTML  string    `json:"teaserHtml,omitempty"`
	BodyHTML    string    `json:"bodyHtml,omitempty"`
	AuthorEmail string    `json:"-"`
	Comments    []Comment `json:"comments,omitempty"`
}

// Comment - модель данных комментария к статье.
// Комментарий принадлежит статье; ParentID == 0 означает
// корневой комментарий, иначе это ответ на комментарий
// той же статьи.
type Comment struct {
	ID          int64  `json:"id"`
	ArticleID   int64  `json:"article_id"`
	ParentID    int64  `json:"parent,omitempty"`
	Author      string `json:"author"`
	Email       string `json:"-"`
	Site        string `json:"site,omitempty"`
	Content     string `json:"-"`
	ContentHTML string `json:"contentHtml"`
	Created     int64  `json:"created"`
}

// CommentView - проекция комментария для выдачи клиенту.
// Адрес почты наружу не отдаётся, вместо него производный
// адрес граватара.
type CommentView struct {
	ID          int64  `json:"id"`
	Created     string `json:"created"`
	Author      string `json:"author"`
	Site        string `json:"site,omitempty"`
	ContentHTML string `json:"contentHtml"`
	Parent      int64  `json:"parent,omitempty"`
	Gravatar    string `json:"gravatar"`
}

// Thread - ветка обсуждения: корневой комментарий
// и прямые ответы на него. Ветки не хранятся,
// а собираются заново при каждом чтении.
type Thread struct {
	ID       int64         `json:"id"`
	Comments []CommentView `json:"comments"`
}

// Repository - контракт на работу с хранилищем статей.
type Repository interface {
	ArticleBySlug(ctx context.Context, slug, status string) (*Article, error) // получить статью с комментариями
	ArticlesByStatus(ctx context.Context, status string) ([]Article, error)   // получить статьи по статусу
	AddComment(ctx context.Context, articleID int64, c *Comment) (int64, error)
	UpdateStatus(ctx context.Context, articleID int64, status string) error
	Close() error // закрыть соединение с БД.
}

// View возвращает проекцию комментария.
func View(c Comment) CommentView {
	return CommentView{
		ID:          c.ID,
		Created:     time.Unix(c.Created, 0).UTC().Format(TimeFormat),
		Author:      c.Author,
		Site:        c.Site,
		ContentHTML: c.ContentHTML,
		Parent:      c.ParentID,
		Gravatar:    GravatarURL(c.Email),
	}
}

// GravatarURL выводит адрес аватара из почты комментатора.
func GravatarURL(email string) string {
	h := md5.Sum([]byte(normalizeEmail(email)))
	return fmt.Sprintf("https://gravatar.com/avatar/%x?s=200&d=identicon", h)
}

// Threads собирает ветки обсуждения из плоского списка
// комментариев. Комментарии обрабатываются в порядке
// возрастания времени создания: корневой комментарий
// открывает новую ветку, ответ попадает в уже открытую
// ветку родителя. Благодаря правилу вложенности родитель
// ответа - всегда корневой комментарий, созданный раньше;
// если ветка родителя не найдена, возвращается
// [ErrMalformedThread].
func Threads(comments []Comment) ([]Thread, error) {
	sorted := make([]Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Created < sorted[j].Created
	})

	threads := make([]Thread, 0, len(sorted))
	idx := make(map[int64]int, len(sorted)) // id корня -> позиция ветки

	for i := range sorted {
		v := View(sorted[i])
		if sorted[i].ParentID == 0 {
			idx[sorted[i].ID] = len(threads)
			threads = append(threads, Thread{ID: sorted[i].ID, Comments: []CommentView{v}})
			continue
		}
		j, ok := idx[sorted[i].ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: comment %d replies to unknown comment %d",
				ErrMalformedThread, sorted[i].ID, sorted[i].ParentID)
		}
		threads[j].Comments = append(threads[j].Comments, v)
	}

	return threads, nil
}
