package spamcheck

import (
	"testing"

	"github.com/rtemka/blog/domain"
)

func TestBanned(t *testing.T) {
	f, err := New([]string{"viagra", "casino"})
	if err != nil {
		t.Fatalf("New() = err %v", err)
	}

	t.Run("allowed_comments", func(t *testing.T) {
		allowed := []domain.CommentInput{
			{Content: "good comment"},
			{Content: "my casinoschool essay"}, // слово внутри большего слова
			{Content: "viagrafalls is a place"},
			{Author: "bob", Site: "https://example.com", Content: "hello"},
			{}, // пустые поля никогда не совпадают
		}

		for i := range allowed {
			if f.Banned(allowed[i]) {
				t.Errorf("Banned(%q) = %t, want %t", allowed[i].Content, true, false)
			}
		}
	})

	t.Run("banned_comments", func(t *testing.T) {
		banned := []domain.CommentInput{
			{Content: "buy viagra now"},
			{Content: "VIAGRA"},                        // регистр не важен
			{Content: "mail@casino.com writes"},        // ограничено '@' и '.'
			{Content: "words,casino,words"},            // ограничено запятыми
			{Site: "visit casino today", Content: "x"}, // поле site
			{Author: "casino", Content: "y"},           // поле author
			{Content: "ends with casino"},
		}

		for i := range banned {
			if !f.Banned(banned[i]) {
				t.Errorf("Banned(%+v) = %t, want %t", banned[i], false, true)
			}
		}
	})

	t.Run("empty_word_list", func(t *testing.T) {
		empty, err := New(nil)
		if err != nil {
			t.Fatalf("New() = err %v", err)
		}
		if empty.Banned(domain.CommentInput{Content: "anything at all"}) {
			t.Error("Banned() = true for empty word list, want false")
		}
	})
}
