package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup настраивает глобальный zerolog: уровень по окружению,
// имя сервиса в каждой записи. В dev вывод человекочитаемый.
func Setup(appEnv, service string) {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	logger := zerolog.New(os.Stdout)
	if appEnv == "dev" {
		level = zerolog.DebugLevel
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	log.Logger = logger.With().Timestamp().Str("service", service).Logger().Level(level)
}
