// Пакет feed генерирует RSS-ленту опубликованных статей
// и сохраняет ее в файл.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/markup"
	"go.uber.org/zap"
)

// maxItems - сколько последних статей попадает в ленту.
const maxItems = 20

// rss - структуры для кодирования xml.
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Language    string `xml:"language"`
	PubDate     string `xml:"pubDate"`
	TTL         int    `xml:"ttl"`
	Items       []item `xml:"item"`
}

type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// Feed перестраивает RSS-ленту блога.
type Feed struct {
	repo      domain.Repository
	markup    *markup.Compiler
	logger    *zap.Logger
	authority string
	title     string
	path      string
}

// New возвращает [*Feed], пишущий ленту в файл path.
func New(repo domain.Repository, mk *markup.Compiler, logger *zap.Logger, authority, title, path string) *Feed {
	return &Feed{
		repo:      repo,
		markup:    mk,
		logger:    logger,
		authority: authority,
		title:     title,
		path:      path,
	}
}

// Location возвращает путь к файлу ленты.
func (f *Feed) Location() string { return f.path }

// Rebuild собирает ленту из последних опубликованных статей
// и атомарно переписывает файл.
func (f *Feed) Rebuild(ctx context.Context) error {
	arts, err := f.repo.ArticlesByStatus(ctx, domain.StatusPublished)
	if err != nil {
		return fmt.Errorf("feed: fetch published: %w", err)
	}

	sort.SliceStable(arts, func(i, j int) bool {
		return arts[i].Publication > arts[j].Publication
	})
	if len(arts) > maxItems {
		arts = arts[:maxItems]
	}

	now := time.Now().UTC()
	out := rss{
		Version: "2.0",
		Channel: channel{
			Title:       f.title,
			Link:        f.authority,
			Description: "Latest articles published on " + f.title,
			Language:    "en",
			PubDate:     now.Format(time.RFC1123Z),
			TTL:         15,
		},
	}

	for i := range arts {
		html, err := f.markup.Compile(arts[i].TeaserHTML+arts[i].BodyHTML, markup.Options{Absolutize: true})
		if err != nil {
			return fmt.Errorf("feed: absolutize %q: %w", arts[i].Slug, err)
		}
		out.Channel.Items = append(out.Channel.Items, item{
			Title:       arts[i].Title,
			Link:        f.authority + "/articles/" + arts[i].Slug,
			Description: html,
			PubDate:     time.Unix(arts[i].Publication, 0).UTC().Format(time.RFC1123Z),
		})
	}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("feed: marshal: %w", err)
	}
	b = append([]byte(xml.Header), b...)

	// пишем во временный файл и переименовываем,
	// чтобы читатели не видели недописанную ленту
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("feed: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("feed: write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("feed: rename: %w", err)
	}

	f.logger.Debug("regenerated RSS feed", zap.Int("items", len(out.Channel.Items)))

	return nil
}
