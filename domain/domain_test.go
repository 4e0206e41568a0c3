package domain

import (
	"errors"
	"strings"
	"testing"
)

func Test_Threads(t *testing.T) {
	// A(корень, t=1), B(ответ на A, t=3), C(корень, t=2) -
	// порядок веток определяется временем создания корней,
	// ответы группируются под своим корнем.
	in := []Comment{
		{ID: 1, Author: "A", Created: 1},
		{ID: 2, ParentID: 1, Author: "B", Created: 3},
		{ID: 3, Author: "C", Created: 2},
	}

	got, err := Threads(in)
	if err != nil {
		t.Fatalf("Threads() = err %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Threads() = %d threads, want %d", len(got), 2)
	}

	if got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("Threads() roots = [%d %d], want [1 3]", got[0].ID, got[1].ID)
	}

	if len(got[0].Comments) != 2 {
		t.Fatalf("Threads() first thread = %d comments, want %d", len(got[0].Comments), 2)
	}

	if got[0].Comments[0].ID != 1 || got[0].Comments[1].ID != 2 {
		t.Errorf("Threads() first thread order = [%d %d], want [1 2]",
			got[0].Comments[0].ID, got[0].Comments[1].ID)
	}

	if len(got[1].Comments) != 1 || got[1].Comments[0].ID != 3 {
		t.Errorf("Threads() second thread = %v, want single comment 3", got[1].Comments)
	}
}

func Test_Threads_interleaved(t *testing.T) {
	// ответы на разные корни вперемешку
	in := []Comment{
		{ID: 4, ParentID: 2, Created: 5},
		{ID: 1, Created: 1},
		{ID: 3, ParentID: 1, Created: 4},
		{ID: 2, Created: 2},
		{ID: 5, ParentID: 1, Created: 6},
	}

	got, err := Threads(in)
	if err != nil {
		t.Fatalf("Threads() = err %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Threads() = %d threads, want %d", len(got), 2)
	}

	wantFirst := []int64{1, 3, 5}
	for i, id := range wantFirst {
		if got[0].Comments[i].ID != id {
			t.Errorf("Threads() first thread [%d] = %d, want %d", i, got[0].Comments[i].ID, id)
		}
	}

	wantSecond := []int64{2, 4}
	for i, id := range wantSecond {
		if got[1].Comments[i].ID != id {
			t.Errorf("Threads() second thread [%d] = %d, want %d", i, got[1].Comments[i].ID, id)
		}
	}
}

func Test_Threads_malformed(t *testing.T) {
	in := []Comment{
		{ID: 1, Created: 1},
		{ID: 2, ParentID: 99, Created: 2},
	}

	_, err := Threads(in)
	if !errors.Is(err, ErrMalformedThread) {
		t.Fatalf("Threads() = err %v, want %v", err, ErrMalformedThread)
	}
}

func Test_View(t *testing.T) {
	c := Comment{
		ID:          7,
		ParentID:    3,
		Author:      "alice",
		Email:       " Alice@Example.com ",
		ContentHTML: "<p>hi</p>",
		Created:     1659947255,
	}

	v := View(c)

	if v.ID != 7 || v.Parent != 3 || v.Author != "alice" || v.ContentHTML != "<p>hi</p>" {
		t.Errorf("View() = %+v, fields do not match source comment", v)
	}

	// адрес почты приводится к нижнему регистру перед хешированием
	if v.Gravatar != GravatarURL("alice@example.com") {
		t.Errorf("View() gravatar = %s, want normalized hash", v.Gravatar)
	}

	if strings.Contains(v.Gravatar, "@") {
		t.Errorf("View() gravatar = %s, must not leak the email", v.Gravatar)
	}
}

func Test_Validate(t *testing.T) {
	tests := []struct {
		name string
		in   CommentInput
		want int // количество сообщений
	}{
		{"valid", CommentInput{Author: "bob", Email: "bob@x.com", Content: "Hello"}, 0},
		{"empty", CommentInput{}, 3},
		{"bad_email", CommentInput{Author: "bob", Email: "not-an-email", Content: "hi"}, 1},
		{"blank_content", CommentInput{Author: "bob", Email: "bob@x.com", Content: "   "}, 1},
		{"long_content", CommentInput{Author: "bob", Email: "bob@x.com", Content: strings.Repeat("a", maxContentLen+1)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Validate(); len(got) != tt.want {
				t.Errorf("Validate() = %d messages %v, want %d", len(got), got, tt.want)
			}
		})
	}
}
