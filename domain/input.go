package domain

import (
	"regexp"
	"strings"
)

// ограничения на длину полей комментария.
const (
	maxAuthorLen  = 100
	maxSiteLen    = 200
	maxContentLen = 15000
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CommentInput - входные данные на создание комментария.
type CommentInput struct {
	Author  string `json:"author"`
	Email   string `json:"email"`
	Site    string `json:"site,omitempty"`
	Content string `json:"content"`
	Parent  int64  `json:"parent,omitempty"`
}

// Validate проверяет входные данные и возвращает список
// сообщений для пользователя. Пустой список означает,
// что данные корректны.
func (in CommentInput) Validate() []string {
	var msgs []string

	switch {
	case strings.TrimSpace(in.Author) == "":
		msgs = append(msgs, "Your name is required!")
	case len(in.Author) > maxAuthorLen:
		msgs = append(msgs, "Your name is too long!")
	}

	switch {
	case strings.TrimSpace(in.Email) == "":
		msgs = append(msgs, "An email address is required!")
	case !emailRx.MatchString(in.Email):
		msgs = append(msgs, "Please use a valid email address!")
	}

	if len(in.Site) > maxSiteLen {
		msgs = append(msgs, "The site address is too long!")
	}

	switch {
	case strings.TrimSpace(in.Content) == "":
		msgs = append(msgs, "The comment can't be empty!")
	case len(in.Content) > maxContentLen:
		msgs = append(msgs, "The comment is too long!")
	}

	return msgs
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
