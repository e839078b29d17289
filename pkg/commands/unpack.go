package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mfafio/mfaf/pkg/mfaf"
	"github.com/mfafio/mfaf/pkg/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type unpackOptions struct {
	InputPath  string
	OutputPath string
	Strict     bool
	Verbose    bool
}

var unpackOpts = &unpackOptions{}

var UnpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Unpack an archive's entries into a directory",
	RunE:  runUnpack,
}

func init() {
	UnpackCmd.Flags().StringVarP(&unpackOpts.InputPath, "input", "i", "", "Input archive path, or an s3://bucket/key location")
	UnpackCmd.Flags().StringVarP(&unpackOpts.OutputPath, "output", "o", ".", "Output directory for extracted entries")
	UnpackCmd.Flags().BoolVar(&unpackOpts.Strict, "strict", false, "Reject unknown flag bits and non-zero reserved regions instead of tolerating them")
	UnpackCmd.Flags().BoolVarP(&unpackOpts.Verbose, "verbose", "v", false, "Verbose logging")
	UnpackCmd.MarkFlagRequired("input")
}

func runUnpack(cmd *cobra.Command, args []string) error {
	if unpackOpts.Verbose {
		if err := mfaf.SetLogLevel("debug"); err != nil {
			return err
		}
	}

	ctx := context.Background()
	loc, err := storage.ParseLocation(unpackOpts.InputPath)
	if err != nil {
		return err
	}

	src, err := storage.Open(ctx, loc)
	if err != nil {
		return err
	}
	defer src.Close()

	a, err := mfaf.Load(src, mfaf.DecodeOptions{Strict: unpackOpts.Strict})
	if err != nil {
		return fmt.Errorf("mfaf: load %q: %w", unpackOpts.InputPath, err)
	}

	for _, name := range a.Names() {
		if err := extractOne(a, name, unpackOpts.OutputPath); err != nil {
			return fmt.Errorf("mfaf: extract %q: %w", name, err)
		}
	}

	log.Info().Str("output", unpackOpts.OutputPath).Int("entries", len(a.Names())).Msg("mfaf: unpacked archive")
	return nil
}

func extractOne(a *mfaf.Archive, name, outputDir string) error {
	destPath := filepath.Join(outputDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return a.Extract(name, f)
}
