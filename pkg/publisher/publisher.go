// Пакет publisher - пакетное задание публикации статей.
// Находит статьи, назначенные к публикации, публикует
// дозревшие и запускает их продвижение.
package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/campaign"
	"go.uber.org/zap"
)

// workers - потолок конкурентности пакета: не больше двух
// статей публикуется одновременно, чтобы не перегружать
// почтовый сервис и соцсети.
const workers = 2

// Summary - итог одного запуска задания.
type Summary struct {
	Attempted int
	Published int
	Errs      []error
}

// Job - задание публикации.
type Job struct {
	repo     domain.Repository
	campaign campaign.Campaigner
	logger   *zap.Logger
	now      func() time.Time
}

// New возвращает [*Job]. campaign может быть nil,
// тогда продвижение пропускается.
func New(repo domain.Repository, c campaign.Campaigner, logger *zap.Logger) *Job {
	return &Job{
		repo:     repo,
		campaign: c,
		logger:   logger,
		now:      time.Now,
	}
}

// Due сообщает, пора ли публиковать статью: дата публикации
// не задана или уже наступила.
func Due(a *domain.Article, now time.Time) bool {
	return a.Publication == 0 || a.Publication <= now.Unix()
}

// Run выполняет один прогон задания. Статьи обрабатываются
// пулом из двух воркеров; ошибка одной статьи не мешает
// остальным - ошибки копятся в итоге, а не прерывают пакет.
func (j *Job) Run(ctx context.Context) Summary {
	var sum Summary

	articles, err := j.repo.ArticlesByStatus(ctx, domain.StatusPublish)
	if err != nil {
		sum.Errs = append(sum.Errs, fmt.Errorf("fetch slated articles: %w", err))
		return sum
	}
	if len(articles) == 0 {
		j.logger.Info("no articles slated for publication")
		return sum
	}

	sum.Attempted = len(articles)
	j.logger.Info("found articles slated for publication", zap.Int("count", len(articles)))

	var mu sync.Mutex
	var wg sync.WaitGroup
	queue := make(chan *domain.Article)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range queue {
				published, err := j.single(ctx, a)
				mu.Lock()
				if err != nil {
					sum.Errs = append(sum.Errs, err)
				} else if published {
					sum.Published++
				}
				mu.Unlock()
			}
		}()
	}

	for i := range articles {
		queue <- &articles[i]
	}
	close(queue)
	wg.Wait()

	return sum
}

// single публикует одну статью. Сначала сохраняется смена
// статуса, потом запускается продвижение: его ошибка только
// логируется и прогон не портит.
func (j *Job) single(ctx context.Context, a *domain.Article) (bool, error) {
	now := j.now()

	if !Due(a, now) {
		when := time.Unix(a.Publication, 0).UTC()
		j.logger.Info("article will be published later",
			zap.String("title", a.Title),
			zap.String("when", when.Format(domain.TimeFormat)))
		return false, nil
	}

	// смена статуса сохраняется до продвижения!
	if err := j.repo.UpdateStatus(ctx, a.ID, domain.StatusPublished); err != nil {
		return false, fmt.Errorf("publish %q: %w", a.Slug, err)
	}
	a.Status = domain.StatusPublished
	j.logger.Info("published", zap.String("title", a.Title))

	if j.campaign != nil {
		if err := j.campaign.Campaign(ctx, a); err != nil {
			j.logger.Error("article campaign failed",
				zap.String("title", a.Title), zap.Error(err))
		}
	}

	return true, nil
}
