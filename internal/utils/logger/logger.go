// Package logger provides a global logger for the application
package logger

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"go.uber.org/zap"
)

var Logger = zap.NewNop()

func initLogger(level string) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Caller().Logger()

	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if environment == "" {
		environment = "prod"
	}

	var logLevel zerolog.Level
	switch environment {
	case "dev", "test":
		logLevel = zerolog.TraceLevel
	case "prod":
		logLevel = zerolog.InfoLevel
	default:
		logLevel = zerolog.InfoLevel
		log.Warn().Str("environment", environment).Msg("Unknown environment - defaulting to production log level (info and above)")
	}

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			log.Warn().Str("level", level).Msg("Unknown log level - keeping environment default")
		} else {
			logLevel = parsed
		}
	}

	zerolog.SetGlobalLevel(logLevel)

	zapCfg := zap.NewProductionConfig()
	if logLevel <= zerolog.DebugLevel {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if z, err := zapCfg.Build(); err == nil {
		Logger = z
	} else {
		log.Error().Err(err).Msg("failed to build zap logger, progress lines disabled")
	}

	log.Debug().Str("environment", environment).Str("level", logLevel.String()).Msg("logging initialised")
}

// Init initializes the logger with the configuration from the environment.
// level overrides both ENVIRONMENT and LOG_LEVEL when non-empty.
// Example usage:
//
//	logger.Init("") <- inside whichever main() function in your entrypoint
//
// Then, `LOG_LEVEL=debug novelty run ...`
func Init(level string) {
	initLogger(level)
}

// Sugar returns a sugared logger for key/value progress lines
func Sugar() *zap.SugaredLogger {
	return Logger.Sugar()
}
