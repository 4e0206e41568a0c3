package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rtemka/blog/domain"
)

var tdb *SQLite

func restoreDB(tdb *SQLite) error {
	b, err := os.ReadFile(filepath.Join("testdata", "t.sql"))
	if err != nil {
		return err
	}

	return tdb.exec(context.Background(), string(b))
}

func TestMain(m *testing.M) {

	var err error
	tdb, err = New("file:test.db?cache=shared&mode=memory&_fk=on")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := restoreDB(tdb); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestSQLite(t *testing.T) {
	if tdb == nil {
		t.Skip("you must open connection to SQLite DB to run this test")
	}

	ctx := context.Background()

	_, err := tdb.ArticleBySlug(ctx, "no-such-slug", domain.StatusPublished)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ArticleBySlug() = err %v, wantErr %v", err, domain.ErrNotFound)
	}

	// статья в статусе publish не видна среди опубликованных
	_, err = tdb.ArticleBySlug(ctx, "scheduled-article", domain.StatusPublished)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ArticleBySlug() = err %v, wantErr %v", err, domain.ErrNotFound)
	}

	a, err := tdb.ArticleBySlug(ctx, "my-article", domain.StatusPublished)
	if err != nil {
		t.Fatalf("ArticleBySlug() = err %v", err)
	}

	want := []domain.Comment{testcom, testcom2, testcom3}
	for i := range want {
		_, err := tdb.AddComment(ctx, a.ID, &want[i])
		if err != nil {
			t.Fatalf("AddComment() = err %v", err)
		}
	}

	a, err = tdb.ArticleBySlug(ctx, "my-article", domain.StatusPublished)
	if err != nil {
		t.Fatalf("ArticleBySlug() = err %v", err)
	}

	if len(a.Comments) != len(want) {
		t.Fatalf("ArticleBySlug() = %d comments, want %d", len(a.Comments), len(want))
	}

	// комментарии возвращаются в порядке создания
	for i := range want {
		if a.Comments[i] != want[i] {
			t.Errorf("ArticleBySlug() comment = %v, want %v", a.Comments[i], want[i])
		}
	}
}

func TestSQLite_UpdateStatus(t *testing.T) {
	if tdb == nil {
		t.Skip("you must open connection to SQLite DB to run this test")
	}

	ctx := context.Background()

	arts, err := tdb.ArticlesByStatus(ctx, domain.StatusPublish)
	if err != nil {
		t.Fatalf("ArticlesByStatus() = err %v", err)
	}
	if len(arts) != 1 {
		t.Fatalf("ArticlesByStatus() = %d articles, want %d", len(arts), 1)
	}

	if err := tdb.UpdateStatus(ctx, arts[0].ID, domain.StatusPublished); err != nil {
		t.Fatalf("UpdateStatus() = err %v", err)
	}

	arts, err = tdb.ArticlesByStatus(ctx, domain.StatusPublish)
	if err != nil {
		t.Fatalf("ArticlesByStatus() = err %v", err)
	}
	if len(arts) != 0 {
		t.Errorf("ArticlesByStatus() = %d articles after publish, want %d", len(arts), 0)
	}

	if err := tdb.UpdateStatus(ctx, 9999, domain.StatusPublished); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateStatus() = err %v, wantErr %v", err, domain.ErrNotFound)
	}
}

var testcom = domain.Comment{
	ID:          1,
	ArticleID:   1,
	ParentID:    0,
	Author:      "alice",
	Email:       "alice@x.com",
	Content:     "this is simple test comment",
	ContentHTML: "<p>this is simple test comment</p>",
	Created:     1659947255,
}
var testcom2 = domain.Comment{
	ID:          2,
	ArticleID:   1,
	ParentID:    1,
	Author:      "john",
	Email:       "john@x.com",
	Site:        "https://john.example.com",
	Content:     "this is another test comment",
	ContentHTML: "<p>this is another test comment</p>",
	Created:     1659947256,
}
var testcom3 = domain.Comment{
	ID:          3,
	ArticleID:   1,
	ParentID:    0,
	Author:      "bob",
	Email:       "bob@x.com",
	Content:     "this is simple another test comment",
	ContentHTML: "<p>this is simple another test comment</p>",
	Created:     1659947257,
}
