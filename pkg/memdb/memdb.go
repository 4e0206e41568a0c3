// Пакет memdb - хранилище в памяти для тестов.
package memdb

import (
	"context"
	"errors"
	"sync"

	"github.com/rtemka/blog/domain"
)

// ErrForced - принудительная ошибка записи.
var ErrForced = errors.New("memdb: forced write failure")

// MemDB хранит статьи в памяти, реализует domain.Repository.
type MemDB struct {
	mu       sync.Mutex
	nextID   int64
	articles []*domain.Article

	// FailStatus - статьи, для которых UpdateStatus
	// возвращает [ErrForced]. Используется в тестах
	// для имитации сбоя записи.
	FailStatus map[int64]bool
}

// New возвращает пустое хранилище.
func New() *MemDB {
	return &MemDB{FailStatus: map[int64]bool{}}
}

// AddArticle кладет статью в хранилище и возвращает ее id.
func (m *MemDB) AddArticle(a domain.Article) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	a.ID = m.nextID
	for i := range a.Comments {
		a.Comments[i].ArticleID = a.ID
	}
	m.articles = append(m.articles, &a)
	return a.ID
}

// ArticleBySlug находит статью по слагу и статусу.
// Возвращается копия, правки в ней не видны хранилищу.
func (m *MemDB) ArticleBySlug(_ context.Context, slug, status string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.articles {
		if a.Slug == slug && a.Status == status {
			cp := *a
			cp.Comments = append([]domain.Comment(nil), a.Comments...)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ArticlesByStatus получает все статьи с заданным статусом.
func (m *MemDB) ArticlesByStatus(_ context.Context, status string) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Article
	for _, a := range m.articles {
		if a.Status == status {
			cp := *a
			cp.Comments = append([]domain.Comment(nil), a.Comments...)
			out = append(out, cp)
		}
	}
	return out, nil
}

// AddComment добавляет комментарий к статье.
func (m *MemDB) AddComment(_ context.Context, articleID int64, c *domain.Comment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.articles {
		if a.ID == articleID {
			m.nextID++
			c.ID = m.nextID
			c.ArticleID = articleID
			a.Comments = append(a.Comments, *c)
			return c.ID, nil
		}
	}
	return 0, domain.ErrNotFound
}

// UpdateStatus переводит статью в заданный статус.
func (m *MemDB) UpdateStatus(_ context.Context, articleID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailStatus[articleID] {
		return ErrForced
	}
	for _, a := range m.articles {
		if a.ID == articleID {
			a.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

// CommentCount возвращает число комментариев статьи.
func (m *MemDB) CommentCount(articleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.articles {
		if a.ID == articleID {
			return len(a.Comments)
		}
	}
	return 0
}

func (m *MemDB) Close() error { return nil }
