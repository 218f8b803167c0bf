package main

import (
	"context"
	"os"

	"github.com/117503445/genpayload/pkg/validator"
	"github.com/117503445/goutils"
	"github.com/rs/zerolog/log"
)

func main() {
	goutils.InitZeroLog()

	ctx := log.Logger.WithContext(context.Background())
	logger := log.Ctx(ctx)

	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	logger.Info().
		Str("phase", "inspect").
		Str("dir", dir).
		Msg("Start validating generated payload files")

	if err := validator.ValidateOutputDir(ctx, dir); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("Payload files are invalid")
		os.Exit(1)
	}

	logger.Info().Str("phase", "inspect").Str("dir", dir).Msg("Payload files are valid")
}
