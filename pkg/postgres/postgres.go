// Пакет postgres реализует хранилище статей и комментариев
// поверх PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rtemka/blog/domain"
)

// Postgres выполняет CRUD операции с БД
type Postgres struct {
	db *pgxpool.Pool
}

// New выполняет подключение
// и возвращает объект для взаимодействия с БД
func New(connString string) (*Postgres, error) {

	pool, err := pgxpool.Connect(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	return &Postgres{db: pool}, pool.Ping(context.Background())
}

// Close выполняет закрытие подключения к БД
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

// ArticleBySlug находит статью по слагу и статусу,
// комментарии подгружаются в порядке создания.
func (p *Postgres) ArticleBySlug(ctx context.Context, slug, status string) (*domain.Article, error) {
	stmt := `
		SELECT
			id, slug, title, status,
			publication, teaser_html, body_html, author_email
		FROM articles
		WHERE slug = $1 AND status = $2;`

	var a domain.Article

	err := p.db.QueryRow(ctx, stmt, slug, status).Scan(
		&a.ID, &a.Slug, &a.Title, &a.Status,
		&a.Publication, &a.TeaserHTML, &a.BodyHTML, &a.AuthorEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Comments, err = p.comments(ctx, a.ID)

	return &a, err
}

// ArticlesByStatus получает все статьи с заданным статусом,
// без комментариев.
func (p *Postgres) ArticlesByStatus(ctx context.Context, status string) ([]domain.Article, error) {
	stmt := `
		SELECT
			id, slug, title, status,
			publication, teaser_html, body_html, author_email
		FROM articles
		WHERE status = $1
		ORDER BY publication DESC, id DESC;`

	rows, err := p.db.Query(ctx, stmt, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arts []domain.Article

	for rows.Next() {
		var a domain.Article
		err := rows.Scan(&a.ID, &a.Slug, &a.Title, &a.Status,
			&a.Publication, &a.TeaserHTML, &a.BodyHTML, &a.AuthorEmail)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}

	return arts, rows.Err()
}

func (p *Postgres) comments(ctx context.Context, articleID int64) ([]domain.Comment, error) {
	stmt := `
		SELECT
			id, article_id, parent_id, author,
			email, site, content, content_html, created
		FROM comments
		WHERE article_id = $1
		ORDER BY created, id;`

	rows, err := p.db.Query(ctx, stmt, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coms []domain.Comment

	for rows.Next() {
		var c domain.Comment
		err := rows.Scan(&c.ID, &c.ArticleID, &c.ParentID, &c.Author,
			&c.Email, &c.Site, &c.Content, &c.ContentHTML, &c.Created)
		if err != nil {
			return nil, err
		}
		coms = append(coms, c)
	}

	return coms, rows.Err()
}

// AddComment добавляет комментарий к статье одной транзакцией.
func (p *Postgres) AddComment(ctx context.Context, articleID int64, c *domain.Comment) (int64, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	stmt := `
		INSERT INTO comments(article_id, parent_id, author, email, site, content, content_html, created)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;`

	err = tx.QueryRow(ctx, stmt,
		articleID, c.ParentID, c.Author, c.Email, c.Site, c.Content, c.ContentHTML, c.Created).Scan(&c.ID)
	if err != nil {
		return 0, err
	}
	c.ArticleID = articleID

	return c.ID, tx.Commit(ctx)
}

// UpdateStatus переводит статью в заданный статус.
func (p *Postgres) UpdateStatus(ctx context.Context, articleID int64, status string) error {
	stmt := `UPDATE articles SET status = $1 WHERE id = $2;`

	ct, err := p.db.Exec(ctx, stmt, status, articleID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
