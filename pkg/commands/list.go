package commands

import (
	"context"
	"fmt"

	"github.com/mfafio/mfaf/pkg/mfaf"
	"github.com/mfafio/mfaf/pkg/storage"
	"github.com/spf13/cobra"
)

type listOptions struct {
	InputPath string
}

var listOpts = &listOptions{}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entries in an archive",
	RunE:  runList,
}

func init() {
	ListCmd.Flags().StringVarP(&listOpts.InputPath, "input", "i", "", "Input archive path, or an s3://bucket/key location")
	ListCmd.MarkFlagRequired("input")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	loc, err := storage.ParseLocation(listOpts.InputPath)
	if err != nil {
		return err
	}

	src, err := storage.Open(ctx, loc)
	if err != nil {
		return err
	}
	defer src.Close()

	a, err := mfaf.Load(src, mfaf.DecodeOptions{})
	if err != nil {
		return fmt.Errorf("mfaf: load %q: %w", listOpts.InputPath, err)
	}

	for _, name := range a.Names() {
		e, _ := a.Get(name)
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %10d  %s\n", e.Name, e.Size, e.MimeType)
	}
	return nil
}
