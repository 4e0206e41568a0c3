package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/memdb"
	"go.uber.org/zap"
)

type fakeCampaign struct {
	mu    sync.Mutex
	slugs []string
	err   error
}

func (f *fakeCampaign) Campaign(_ context.Context, a *domain.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugs = append(f.slugs, a.Slug)
	return f.err
}

func slated(n int) []domain.Article {
	arts := make([]domain.Article, n)
	for i := range arts {
		arts[i] = domain.Article{
			Slug:        fmt.Sprintf("article-%d", i),
			Title:       fmt.Sprintf("Article %d", i),
			Status:      domain.StatusPublish,
			AuthorEmail: "author@x.com",
		}
	}
	return arts
}

func TestRun(t *testing.T) {
	db := memdb.New()
	for _, a := range slated(3) {
		db.AddArticle(a)
	}
	fc := &fakeCampaign{}
	job := New(db, fc, zap.NewNop())

	sum := job.Run(context.Background())

	if sum.Attempted != 3 || sum.Published != 3 || len(sum.Errs) != 0 {
		t.Fatalf("Run() = attempted %d published %d errs %v, want 3/3/none",
			sum.Attempted, sum.Published, sum.Errs)
	}

	// все статьи переведены в published и прошли продвижение
	left, _ := db.ArticlesByStatus(context.Background(), domain.StatusPublish)
	if len(left) != 0 {
		t.Errorf("Run() = %d articles still slated, want 0", len(left))
	}
	if len(fc.slugs) != 3 {
		t.Errorf("Run() = %d campaigns, want 3", len(fc.slugs))
	}
}

func TestRun_failureIsolation(t *testing.T) {
	// пакет из 5 статей, у 2 отказывает запись статуса:
	// прогон отмечает 2 ошибки, публикует 3,
	// все 5 должны быть обработаны.
	db := memdb.New()
	var ids []int64
	for _, a := range slated(5) {
		ids = append(ids, db.AddArticle(a))
	}
	db.FailStatus[ids[1]] = true
	db.FailStatus[ids[3]] = true

	job := New(db, nil, zap.NewNop())
	sum := job.Run(context.Background())

	if sum.Attempted != 5 {
		t.Errorf("Run() = attempted %d, want 5", sum.Attempted)
	}
	if sum.Published != 3 {
		t.Errorf("Run() = published %d, want 3", sum.Published)
	}
	if len(sum.Errs) != 2 {
		t.Errorf("Run() = %d errors, want 2: %v", len(sum.Errs), sum.Errs)
	}
	for _, err := range sum.Errs {
		if !errors.Is(err, memdb.ErrForced) {
			t.Errorf("Run() = err %v, want wrapped %v", err, memdb.ErrForced)
		}
	}
}

func TestRun_futureDated(t *testing.T) {
	db := memdb.New()
	a := slated(1)[0]
	a.Publication = time.Now().Add(24 * time.Hour).Unix()
	db.AddArticle(a)

	job := New(db, nil, zap.NewNop())
	sum := job.Run(context.Background())

	// будущая дата - не ошибка, просто не публикуем
	if sum.Attempted != 1 || sum.Published != 0 || len(sum.Errs) != 0 {
		t.Fatalf("Run() = attempted %d published %d errs %v, want 1/0/none",
			sum.Attempted, sum.Published, sum.Errs)
	}

	left, _ := db.ArticlesByStatus(context.Background(), domain.StatusPublish)
	if len(left) != 1 {
		t.Errorf("Run() = %d slated after run, want 1", len(left))
	}
}

func TestRun_campaignFailureTolerated(t *testing.T) {
	db := memdb.New()
	db.AddArticle(slated(1)[0])
	fc := &fakeCampaign{err: errors.New("social api down")}

	job := New(db, fc, zap.NewNop())
	sum := job.Run(context.Background())

	// продвижение отказало, но публикация состоялась
	// и прогон не считается проваленным
	if sum.Published != 1 || len(sum.Errs) != 0 {
		t.Fatalf("Run() = published %d errs %v, want 1/none", sum.Published, sum.Errs)
	}
}

func TestDue(t *testing.T) {
	now := time.Unix(1659947255, 0)

	tests := []struct {
		name        string
		publication int64
		want        bool
	}{
		{"no_date", 0, true},
		{"past", now.Unix() - 1, true},
		{"exact", now.Unix(), true},
		{"future", now.Unix() + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := domain.Article{Publication: tt.publication}
			if got := Due(&a, now); got != tt.want {
				t.Errorf("Due() = %t, want %t", got, tt.want)
			}
		})
	}
}
