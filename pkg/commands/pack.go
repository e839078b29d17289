package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/mfafio/mfaf/pkg/mfaf"
	"github.com/mfafio/mfaf/pkg/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type packOptions struct {
	InputPath  string
	OutputPath string
	Verbose    bool
}

var packOpts = &packOptions{}

var PackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a directory into an archive",
	RunE:  runPack,
}

func init() {
	PackCmd.Flags().StringVarP(&packOpts.InputPath, "input", "i", "", "Input directory to pack")
	PackCmd.Flags().StringVarP(&packOpts.OutputPath, "output", "o", "out.mfaf", "Output archive path, or an s3://bucket/key location")
	PackCmd.Flags().BoolVarP(&packOpts.Verbose, "verbose", "v", false, "Verbose logging")
	PackCmd.MarkFlagRequired("input")
}

func runPack(cmd *cobra.Command, args []string) error {
	if packOpts.Verbose {
		if err := mfaf.SetLogLevel("debug"); err != nil {
			return err
		}
	}

	a := mfaf.New()
	if err := populateFromDir(a, packOpts.InputPath); err != nil {
		return fmt.Errorf("mfaf: pack %q: %w", packOpts.InputPath, err)
	}

	loc, err := storage.ParseLocation(packOpts.OutputPath)
	if err != nil {
		return err
	}
	if err := storage.Save(context.Background(), loc, a); err != nil {
		return err
	}

	log.Info().Str("output", packOpts.OutputPath).Int("entries", len(a.Names())).Msg("mfaf: packed archive")
	return nil
}

// populateFromDir walks sourceDir and adds every regular file it
// finds to a, using the file's path relative to sourceDir as the
// entry name.
func populateFromDir(a *mfaf.Archive, sourceDir string) error {
	return godirwalk.Walk(sourceDir, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if de.IsSymlink() {
				log.Warn().Str("path", path).Msg("mfaf: skipping symlink, not representable as an entry")
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			name := strings.TrimPrefix(strings.TrimPrefix(path, sourceDir), string(filepath.Separator))
			return a.Add(mfaf.NewEntry(name, content, mimeFromExt(path), nil))
		},
	})
}

func mimeFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".txt", ".md":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return ""
	}
}
