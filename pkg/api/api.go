// пакет api предоставляет маршрутизатор REST API
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/comments"

	"go.uber.org/zap"
)

var (
	ErrInternal = errors.New("internal server error")
	ErrBadInput = errors.New("invalid input")
)

type ctxKey int

const (
	requestID ctxKey = iota
)

type wideResponseWriter struct {
	http.ResponseWriter
	length, status int
	internalErr    error
}

func (w *wideResponseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *wideResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return n, err
}

// REST API.
type API struct {
	router   *mux.Router
	comments *comments.Service
	repo     domain.Repository
	feedPath string
	logger   *zap.Logger
}

// New возвращает [*API]. feedPath - путь к файлу RSS-ленты,
// пустая строка отключает эндпоинт ленты.
func New(svc *comments.Service, repo domain.Repository, feedPath string, logger *zap.Logger) *API {
	api := API{
		router:   mux.NewRouter(),
		comments: svc,
		repo:     repo,
		feedPath: feedPath,
		logger:   logger,
	}
	api.endpoints()
	rand.Seed(time.Now().UnixNano())
	return &api
}

// ServeHTTP - таким образом, мы можем использовать
// сам [*API] в качестве мультиплексора на сервере.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func (api *API) endpoints() {
	api.router.Use(
		api.requestIDMiddleware,
		api.wideEventLogMiddleware,
		api.closerMiddleware,
		api.headersMiddleware,
	)
	api.router.HandleFunc("/articles/feed", api.handleFeed()).Methods(http.MethodGet, http.MethodOptions)
	api.router.HandleFunc("/articles/{slug}/comments", api.handleCommentCreate()).Methods(http.MethodPost, http.MethodOptions)
	api.router.HandleFunc("/articles/{slug}/comments", api.handleCommentThreads()).Methods(http.MethodGet, http.MethodOptions)
}

// closerMiddleware считывает и закрывает тело запроса
// для повторного использования TCP-соединения.
func (api *API) closerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	})
}

// requestIDMiddleware извлекает id запроса из параметров запроса.
// В случае если id запроса отсутствует, id генерируется.
// Далее id добавляется в контекст запроса.
func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.URL.Query().Get("request-id")
		if rid == "" {
			rid = randStr(18)
		}
		ctxWithID := context.WithValue(r.Context(), requestID, rid)
		rWithID := r.WithContext(ctxWithID)
		next.ServeHTTP(w, rWithID)
	})
}

// wideEventLogMiddleware собирает и регистрирует информацию о полученном запросе.
func (api *API) wideEventLogMiddleware(next http.Handler) http.Handler {

	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {

			wideWriter := &wideResponseWriter{ResponseWriter: w}

			next.ServeHTTP(wideWriter, r)

			addr, _, _ := net.SplitHostPort(r.RemoteAddr)
			api.logger.Info("request received",
				zap.Any("request_id", r.Context().Value(requestID)),
				zap.Int("status_code", wideWriter.status),
				zap.Int("response_length", wideWriter.length),
				zap.Int64("content_length", r.ContentLength),
				zap.String("method", r.Method),
				zap.String("proto", r.Proto),
				zap.String("remote_addr", addr),
				zap.String("uri", r.RequestURI),
				zap.String("user_agent", r.UserAgent()),
				zap.Error(wideWriter.internalErr),
			)
		},
	)
}

// headersMiddleware задает обычные заголовки для всех ответов.
func (api *API) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (api *API) WriteJSONError(w http.ResponseWriter, err error, code int) {
	w.WriteHeader(code)
	if wrw, ok := w.(*wideResponseWriter); ok {
		wrw.internalErr = err
	}
	if code == http.StatusInternalServerError {
		err = ErrInternal
	}
	msg := map[string]string{"error": err.Error()}
	_ = json.NewEncoder(w).Encode(&msg)
}

func (api *API) WriteJSON(w http.ResponseWriter, data any, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// handleCommentCreate проводит входные данные через конвейер
// создания комментария. Код ответа и сообщения определяет
// сам конвейер.
func (api *API) handleCommentCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		var in domain.CommentInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			api.WriteJSONError(w, ErrBadInput, http.StatusBadRequest)
			return
		}

		res := api.comments.Create(r.Context(), mux.Vars(r)["slug"], in)

		api.WriteJSON(w, res, res.Code)
	}
}

// handleCommentThreads отдает ветки обсуждения статьи.
func (api *API) handleCommentThreads() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		a, err := api.repo.ArticleBySlug(ctx, mux.Vars(r)["slug"], domain.StatusPublished)
		if errors.Is(err, domain.ErrNotFound) {
			api.WriteJSONError(w, errors.New("Article not found"), http.StatusNotFound)
			return
		}
		if err != nil {
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}

		threads, err := domain.Threads(a.Comments)
		if err != nil {
			// повреждённые данные - это наша проблема, не клиента
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}

		api.WriteJSON(w, threads, http.StatusOK)
	}
}

// handleFeed отдает файл RSS-ленты.
func (api *API) handleFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.feedPath == "" {
			api.WriteJSONError(w, domain.ErrNotFound, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml;charset=utf-8")
		http.ServeFile(w, r, api.feedPath)
	}
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
var nums = []rune("1234567890")

// randStr генерирует простyю случайную строку вплоть до n
// символов, чередуя числа и буквы английского алфавита.
func randStr(n int) string {
	var b bytes.Buffer
	for i := 0; i < n; i++ {
		if i^1 == i+1 {
			b.WriteRune(nums[rand.Intn(len(nums))])
		} else {
			b.WriteRune(letters[rand.Intn(len(letters))])
		}
	}
	return b.String()
}
