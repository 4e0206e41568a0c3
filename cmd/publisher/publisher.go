// Команда publisher - разовое пакетное задание: публикует
// дозревшие статьи, запускает их продвижение и перестраивает
// RSS-ленту. Запускается планировщиком (cron) раз в несколько
// минут.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rtemka/blog/domain"
	"github.com/rtemka/blog/pkg/campaign"
	"github.com/rtemka/blog/pkg/feed"
	"github.com/rtemka/blog/pkg/mailer"
	"github.com/rtemka/blog/pkg/markup"
	"github.com/rtemka/blog/pkg/postgres"
	"github.com/rtemka/blog/pkg/publisher"
	"github.com/rtemka/blog/pkg/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// имена переменных окружения
const (
	dbURLEnv     = "BLOG_DB_URL"
	authorityEnv = "AUTHORITY"
	mailerEnv    = "MAILER_URL"
	feedFileEnv  = "FEED_FILE"
	titleEnv     = "BLOG_TITLE"
)

// вебхуки соцсетей для продвижения,
// незаполненные пропускаются
var targetEnvs = map[string]string{
	"twitter":    "CAMPAIGN_TWITTER",
	"facebook":   "CAMPAIGN_FACEBOOK",
	"hackernews": "CAMPAIGN_HACKERNEWS",
	"lobsters":   "CAMPAIGN_LOBSTERS",
}

// timeout ограничивает весь прогон задания.
const timeout = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	zl := zapLogger(os.Stdout)
	defer func() {
		_ = zl.Sync()
	}()

	em, err := envs(dbURLEnv, authorityEnv)
	if err != nil {
		return err
	}

	db, err := connectDB(em[dbURLEnv], 5, time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	var m mailer.Mailer = mailer.Noop{}
	if url := os.Getenv(mailerEnv); url != "" {
		m = mailer.NewClient(url)
	} else {
		zl.Warn("mailer URL is not set, newsletter is disabled")
	}

	targets := make(map[string]string, len(targetEnvs))
	for name, env := range targetEnvs {
		targets[name] = os.Getenv(env)
	}

	c := campaign.New(campaign.Config{
		Targets:   targets,
		Mailer:    m,
		Logger:    zl,
		Authority: em[authorityEnv],
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sum := publisher.New(db, c, zl).Run(ctx)
	zl.Info("publication run finished",
		zap.Int("attempted", sum.Attempted),
		zap.Int("published", sum.Published),
		zap.Int("failed", len(sum.Errs)))

	// лента перестраивается только когда появились
	// новые опубликованные статьи
	if path := os.Getenv(feedFileEnv); path != "" && sum.Published > 0 {
		title := os.Getenv(titleEnv)
		if title == "" {
			title = "Blog"
		}
		mk, err := markup.New(em[authorityEnv])
		if err != nil {
			return err
		}
		if err := feed.New(db, mk, zl, em[authorityEnv], title, path).Rebuild(ctx); err != nil {
			sum.Errs = append(sum.Errs, err)
		}
	}

	if len(sum.Errs) > 0 {
		return fmt.Errorf("publication run: %d of %d articles failed", len(sum.Errs), sum.Attempted)
	}

	return nil
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

var ErrRetryExceeded = errors.New("connect DB: number of retries exceeded")

func connectDB(connstr string, retries int, interval time.Duration) (domain.Repository, error) {

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
		return db, nil
	}

	return nil, ErrRetryExceeded
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
