package main

import (
	"os"
	"time"

	"github.com/mfafio/mfaf/pkg/commands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	root := &cobra.Command{
		Use:   "mfafctl",
		Short: "Pack, unpack, and inspect Multi-File Archive Format (.mfaf) archives",
	}
	root.AddCommand(commands.PackCmd, commands.UnpackCmd, commands.ListCmd)

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("mfafctl failed")
	}
}
