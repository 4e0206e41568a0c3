// Пакет sqlite реализует хранилище статей и комментариев
// поверх SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rtemka/blog/domain"
)

// SQLite выполняет операции CRUD в БД.
type SQLite struct {
	// это поле экпортируемое, чтобы пользователь
	// мог установить такие важные параметры подлючения как
	// SetConnMaxIdleTime, SetMaxOpenConns, SetMaxIdleConns...
	DB *sql.DB
}

// New производит подключение к [*SQLite] БД.
func New(connstr string) (*SQLite, error) {

	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, err
	}

	return &SQLite{DB: db}, db.Ping()
}

// Close closes db connection.
func (l *SQLite) Close() error {
	return l.DB.Close()
}

// ArticleBySlug находит статью по слагу и статусу,
// комментарии подгружаются в порядке создания.
func (l *SQLite) ArticleBySlug(ctx context.Context, slug, status string) (*domain.Article, error) {
	stmt := `
		SELECT
			id, slug, title, status,
			publication, teaser_html, body_html, author_email
		FROM articles
		WHERE slug = $1 AND status = $2;`

	var a domain.Article

	err := l.DB.QueryRowContext(ctx, stmt, slug, status).Scan(
		&a.ID, &a.Slug, &a.Title, &a.Status,
		&a.Publication, &a.TeaserHTML, &a.BodyHTML, &a.AuthorEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Comments, err = l.comments(ctx, a.ID)

	return &a, err
}

// ArticlesByStatus получает все статьи с заданным статусом,
// без комментариев.
func (l *SQLite) ArticlesByStatus(ctx context.Context, status string) ([]domain.Article, error) {
	stmt := `
		SELECT
			id, slug, title, status,
			publication, teaser_html, body_html, author_email
		FROM articles
		WHERE status = $1
		ORDER BY publication DESC, id DESC;`

	rows, err := l.DB.QueryContext(ctx, stmt, status)
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

func (l *SQLite) comments(ctx context.Context, articleID int64) ([]domain.Comment, error) {
	stmt := `
		SELECT
			id, article_id, parent_id, author,
			email, site, content, content_html, created
		FROM comments
		WHERE article_id = $1
		ORDER BY created, id;`

	rows, err := l.DB.QueryContext(ctx, stmt, articleID)
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
func (l *SQLite) AddComment(ctx context.Context, articleID int64, c *domain.Comment) (int64, error) {
	tx, err := l.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := `INSERT INTO comments(article_id, parent_id, author, email, site, content, content_html, created)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8);`

	res, err := tx.ExecContext(ctx, stmt,
		articleID, c.ParentID, c.Author, c.Email, c.Site, c.Content, c.ContentHTML, c.Created)
	if err != nil {
		return 0, err
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ArticleID = articleID

	return c.ID, tx.Commit()
}

// UpdateStatus переводит статью в заданный статус.
func (l *SQLite) UpdateStatus(ctx context.Context, articleID int64, status string) error {
	stmt := `UPDATE articles SET status = $1 WHERE id = $2;`

	res, err := l.DB.ExecContext(ctx, stmt, status, articleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RunFile читает и исполняет sql-файл.
func (l *SQLite) RunFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return l.exec(context.Background(), string(b))
}

// exec вспомогательная функция, выполняет
// *tx.Exec() в транзакции.
func (l *SQLite) exec(ctx context.Context, stmt string, args ...any) error {
	tx, err := l.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	return tx.Commit()
}
