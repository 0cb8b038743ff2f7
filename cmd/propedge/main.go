// Command propedge runs the player prop projection and edge batch pipeline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenbier/propedge/internal/apperr"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	setupLogger()
	os.Exit(execute())
}

// execute runs the root command and maps the error to an exit code:
// 0 success, 2 validation, 3 data source, 4 empty output, 1 anything else
func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	code := apperr.ExitCode(err)
	log.Error().
		Err(err).
		Str("kind", apperr.KindOf(err).String()).
		Int("exit_code", code).
		Msg("Command failed")
	return code
}

func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Debug().
		Str("level", level.String()).
		Msg("Logger initialized")
}
