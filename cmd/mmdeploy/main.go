package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/cli"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := cli.BuildRootCmd(log).Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
