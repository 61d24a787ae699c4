package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/NS2CDT/PerfAnalyzer/internal/logutil"
)

type config struct {
	UploadsDir    string `env:"PLOG_UPLOADS_DIR" env-default:"/var/lib/perf-analyzer/plogs"`
	RetentionDays int    `env:"PLOG_RETENTION_DAYS" env-default:"30"`
	Schedule      string `env:"PLOG_CLEANUP_SCHEDULE" env-default:"@daily"`
	SentryDSN     string `env:"SENTRY_DSN"`
}

// cleanup removes stored plogs and summaries last modified before
// timeLimit, walking every subdirectory of root. It returns the number of
// removed files.
func cleanup(root string, timeLimit time.Time) (int, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, entry := range dirEntries {
		p := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			n, err := cleanup(p, timeLimit)
			removed += n
			if err != nil {
				return removed, err
			}
			continue
		}
		if !isStoredObject(entry.Name()) {
			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, err
		}

		if timeLimit.After(fileInfo.ModTime()) {
			err = os.Remove(p)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, err
			}
			removed++
		}
	}

	return removed, nil
}

func isStoredObject(name string) bool {
	return strings.HasSuffix(name, ".plog") || strings.HasSuffix(name, ".json.lz4")
}

func main() {
	logutil.ConfigureLogger()

	var cfg config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatal().Err(err).Msg("can't read configuration")
	}

	err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	retention := time.Hour * 24 * time.Duration(cfg.RetentionDays)

	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		removed, err := cleanup(cfg.UploadsDir, time.Now().Add(-retention))
		if err != nil {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("error cleaning up directories")
		}
		log.Info().Int("removed", removed).Str("dir", cfg.UploadsDir).Msg("cleanup done")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't set up cron function")
	}

	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt)

	go func() {
		<-exitSignal

		c.Stop()
	}()

	c.Run()
}
