package campaign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/mailer"
	"go.uber.org/zap"
)

func TestCampaign(t *testing.T) {
	var mu sync.Mutex
	got := map[string]Announcement{}

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ann Announcement
		_ = json.NewDecoder(r.Body).Decode(&ann)
		mu.Lock()
		got[r.URL.Path] = ann
		mu.Unlock()
	}))
	defer ok.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	svc := New(Config{
		Targets: map[string]string{
			"twitter":    ok.URL + "/twitter",
			"hackernews": ok.URL + "/hackernews",
			"lobsters":   "", // не настроено - пропускается
		},
		Mailer:    mailer.Noop{},
		Logger:    zap.NewNop(),
		Authority: "https://blog.example.com",
	})

	a := &domain.Article{Slug: "my-article", Title: "My Article"}

	if err := svc.Campaign(context.Background(), a); err != nil {
		t.Fatalf("Campaign() = err %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, path := range []string{"/twitter", "/hackernews"} {
		ann, okk := got[path]
		if !okk {
			t.Errorf("Campaign() = no announcement delivered to %s", path)
			continue
		}
		if ann.Title != "My Article" || ann.URL != "https://blog.example.com/articles/my-article" {
			t.Errorf("Campaign() = announcement %+v for %s", ann, path)
		}
	}

	t.Run("failed_target", func(t *testing.T) {
		svc := New(Config{
			Targets:   map[string]string{"twitter": bad.URL},
			Mailer:    mailer.Noop{},
			Logger:    zap.NewNop(),
			Authority: "https://blog.example.com",
		})

		if err := svc.Campaign(context.Background(), a); err == nil {
			t.Error("Campaign() = nil err, want error from failed target")
		}
	})
}
