// Пакет spamcheck проверяет комментарии на запрещенные слова.
package spamcheck

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rtemka/blog/domain"
)

// Filter - фильтр запрещенных слов. Слово считается
// найденным, только если с обеих сторон оно ограничено
// началом/концом строки, пробелом или одним из символов
// '@,;:.' - вхождение внутри большего слова не считается.
type Filter struct {
	re *regexp.Regexp
}

// New собирает [*Filter] из списка запрещенных слов.
// Пустой список дает фильтр, который ничего не запрещает.
func New(words []string) (*Filter, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) == 0 {
		return &Filter{}, nil
	}

	re, err := regexp.Compile(`(?i)(^|[@,;:.\s])(` + strings.Join(quoted, "|") + `)([@,;:.\s]|$)`)
	if err != nil {
		return nil, fmt.Errorf("spamcheck: compile word list: %w", err)
	}

	return &Filter{re: re}, nil
}

// Banned проверяет содержит ли комментарий запрещенные слова.
// Поля content, site и author проверяются независимо.
func (f *Filter) Banned(in domain.CommentInput) bool {
	if f == nil || f.re == nil {
		return false
	}
	return f.match(in.Content) || f.match(in.Site) || f.match(in.Author)
}

func (f *Filter) match(field string) bool {
	return field != "" && f.re.MatchString(field)
}
