package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/api"
	"github.com/rtemka/blog/pkg/comments"
	"github.com/rtemka/blog/pkg/feed"
	"github.com/rtemka/blog/pkg/gravatar"
	"github.com/rtemka/blog/pkg/mailer"
	"github.com/rtemka/blog/pkg/markup"
	"github.com/rtemka/blog/pkg/postgres"
	"github.com/rtemka/blog/pkg/spamcheck"
	"github.com/rtemka/blog/pkg/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// имена переменных окружения
const (
	portEnv      = "BLOG_PORT"
	dbURLEnv     = "BLOG_DB_URL"
	authorityEnv = "AUTHORITY"
	spamWordsEnv = "SPAM_WORDS"
	mailerEnv    = "MAILER_URL"
	feedFileEnv  = "FEED_FILE"
	titleEnv     = "BLOG_TITLE"
)

// настройки базы данных
const (
	maxConns        = 50
	maxConnIdleTime = 4 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// переменные можно найти не только в файле
	_ = godotenv.Load()

	zl := zapLogger(os.Stdout)
	defer func() {
		_ = zl.Sync()
	}()

	em, err := envs(dbURLEnv, portEnv, authorityEnv)
	if err != nil {
		return err
	}

	db, err := connectDB(em[dbURLEnv], 5, time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	filter, err := spamcheck.New(splitWords(os.Getenv(spamWordsEnv)))
	if err != nil {
		return err
	}
	mk, err := markup.New(em[authorityEnv])
	if err != nil {
		return err
	}

	var m mailer.Mailer = mailer.Noop{}
	if url := os.Getenv(mailerEnv); url != "" {
		m = mailer.NewClient(url)
	} else {
		zl.Warn("mailer URL is not set, emails are disabled")
	}

	svc := comments.New(comments.Config{
		Repo:      db,
		Filter:    filter,
		Markup:    mk,
		Gravatar:  gravatar.NewClient(""),
		Mailer:    m,
		Logger:    zl,
		Authority: em[authorityEnv],
	})

	// лента отдается из файла; если файл задан, при старте
	// она перестраивается на случай, если задание публикации
	// еще ни разу не отработало
	feedPath := os.Getenv(feedFileEnv)
	if feedPath != "" {
		title := os.Getenv(titleEnv)
		if title == "" {
			title = "Blog"
		}
		f := feed.New(db, mk, zl, em[authorityEnv], title, feedPath)
		if err := f.Rebuild(context.Background()); err != nil {
			zl.Error("feed rebuild on start failed", zap.Error(err))
		}
	}

	// создание контекста для регулирования
	// закрытие всех подсистем
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	servers := []*http.Server{
		startRestServer(em[portEnv], svc, db, feedPath, zl, &wg),
	}

	// логика закрытия сервера
	cancelation(cancel, zl, servers)

	wg.Wait()

	// фоновые уведомления о комментариях
	svc.Wait()

	return nil
}

// cancellation отслеживает сигналы прерывания и,
// если они получены, "мягко" отменяет контекст приложения и
// гасит серверы.
func cancelation(cancel context.CancelFunc, logger *zap.Logger, servers []*http.Server) {
	// ловим сигналов прерывания, типа CTRL-C
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-stop // получили сигнал
		sl := logger.Sugar()
		sl.Warnf("got signal %q", sig)

		// закрываем серверы
		for i := range servers {
			if err := servers[i].Shutdown(context.Background()); err != nil {
				sl.Info(err)
			}
		}

		cancel() // закрываем контекст приложения
	}()
}

// envs собирает ожидаемые переменные окружения,
// возвращает ошибку, если какая-либо из переменных env не задана.
func envs(envs ...string) (map[string]string, error) {
	em := make(map[string]string, len(envs))
	var ok bool
	for _, env := range envs {
		if em[env], ok = os.LookupEnv(env); !ok {
			return nil, fmt.Errorf("environment variable %q must be set", env)
		}
	}
	return em, nil
}

// splitWords разбирает список спам-слов из переменной
// окружения, слова разделяются запятыми.
func splitWords(s string) []string {
	var words []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

var ErrRetryExceeded = errors.New("connect DB: number of retries exceeded")

func connectDB(connstr string, retries int, interval time.Duration) (domain.Repository, error) {

	// постгрес для продакшена, sqlite для локальной разработки
	if strings.HasPrefix(connstr, "postgres://") {
		for i := 0; i < retries; i++ {
			db, err := postgres.New(connstr)
			if err != nil {
				log.Println(err)
				time.Sleep(interval)
				continue
			}
			return db, nil
		}
		return nil, ErrRetryExceeded
	}

	for i := 0; i < retries; i++ {
		db, err := sqlite.New(connstr)
		if err != nil {
			log.Println(err)
			time.Sleep(interval)
			continue
		}
		db.DB.SetConnMaxIdleTime(maxConnIdleTime)
		db.DB.SetMaxOpenConns(maxConns)
		db.DB.SetMaxIdleConns(maxConns)

		if err := db.RunFile(filepath.Join("blog.sql")); err != nil {
			return nil, err
		}

		return db, nil
	}

	return nil, ErrRetryExceeded
}

// startRestServer запускает сервер REST API.
func startRestServer(addr string, svc *comments.Service, db domain.Repository, feedPath string, logger *zap.Logger, wg *sync.WaitGroup) *http.Server {
	// REST API
	api := api.New(svc, db, feedPath, logger)

	// конфигурируем сервер
	srv := &http.Server{
		Addr:              addr,
		Handler:           api,
		IdleTimeout:       3 * time.Minute,
		ReadHeaderTimeout: time.Minute,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error(err.Error())
		}
		logger.Warn("server is shut down")
		wg.Done()
	}()
	logger.Info("REST server started", zap.String("address", srv.Addr))
	return srv
}

var encoderCfg = zapcore.EncoderConfig{
	MessageKey: "msg",
	NameKey:    "name",

	LevelKey:    "level",
	EncodeLevel: zapcore.CapitalLevelEncoder,

	CallerKey:    "caller",
	EncodeCaller: zapcore.ShortCallerEncoder,

	TimeKey:    "time",
	EncodeTime: zapcore.RFC3339TimeEncoder,
}

func zapLogger(w io.Writer) *zap.Logger {
	zl := zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(zapcore.AddSync(w)),
			zapcore.DebugLevel,
		),
		zap.AddCaller(),
	)
	return zl
}
